package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/observability"
)

// Generator is the single inference call the describer retries.
type Generator interface {
	Generate(ctx context.Context, image []byte, timeout time.Duration) (string, error)
}

// Describer wraps a Generator with the retry policy and turns exhausted
// retries into a degraded field.
type Describer struct {
	gen    Generator
	policy RetryPolicy
	logger *observability.Logger
}

// NewDescriber creates a describer.
func NewDescriber(gen Generator, policy RetryPolicy, logger *observability.Logger) *Describer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Describer{gen: gen, policy: policy, logger: logger.WithPrefix("describer")}
}

// Describe returns the page description. Only invalid input is an error;
// inference failures come back as a degraded field.
func (d *Describer) Describe(ctx context.Context, image []byte, timeout time.Duration) (domain.Field, error) {
	if err := validateImage(image); err != nil {
		return domain.Field{}, err
	}

	policy := d.policy
	policy.OnRetry = func(attempt int, err error) {
		d.logger.Warn("Attempt %d/%d failed: %v; retrying in %v", attempt, policy.MaxAttempts, err, policy.Delay)
	}

	var description string
	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		d.logger.Debug("Sending inference request (attempt %d)", attempt)
		text, err := d.gen.Generate(ctx, image, timeout)
		if err != nil {
			return err
		}
		description = text
		return nil
	})
	if err != nil {
		d.logger.Error("All %d attempts failed, last error: %v", attempts, err)
		return domain.Degraded(err.Error(), domain.DescriptionFailedSentinel(attempts)), nil
	}

	d.logger.Debug("Received %d characters of description", len(description))
	return domain.OK(description), nil
}

func validateImage(image []byte) error {
	if len(image) == 0 {
		return domain.ValidationError("image payload is empty", nil)
	}
	if ct := http.DetectContentType(image); !strings.HasPrefix(ct, "image/") {
		return domain.ValidationError("image payload is not an image (detected "+ct+")", nil)
	}
	return nil
}
