package store

import (
	"fmt"
	"os"

	"github.com/spherical/pdf-describer/internal/domain"
)

// AppendError records a page-level failure in the append-only error log.
// The detail block is the %+v form of err, which carries a stack trace for
// errors wrapped with github.com/pkg/errors.
func (s *PageStore) AppendError(pageNumber int, pageErr error) error {
	f, err := os.OpenFile(s.ErrorLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.IOError("Failed to open error log", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "Error on page %d: %v\n%+v\n\n", pageNumber, pageErr, pageErr); err != nil {
		return domain.IOError("Failed to write error log", err)
	}
	s.logger.Info("Error details written to %s", s.ErrorLogPath())
	return nil
}
