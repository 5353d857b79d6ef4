package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/observability"
)

// Validator provides input validation for PDF files and render settings
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	// Check if path is empty
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	// Check if file exists
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	// Check if it's a directory
	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	// Check file extension
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	// Check file size (warn if very large, but don't reject)
	const maxSize = 100 * 1024 * 1024 // 100MB
	if info.Size() > maxSize {
		v.logger.Warn("PDF file is very large (%d MB), processing may take a while", info.Size()/(1024*1024))
	}

	// Check if file is readable
	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateRenderOptions validates rasterizer settings
func (v *Validator) ValidateRenderOptions(opts RenderOptions) error {
	if opts.Density <= 0 {
		return domain.ValidationError(fmt.Sprintf("density must be positive, got %d", opts.Density), nil)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return domain.ValidationError(fmt.Sprintf("image size must be positive, got %dx%d", opts.Width, opts.Height), nil)
	}
	if opts.Format != "png" {
		return domain.ValidationError(fmt.Sprintf("unsupported image format %q", opts.Format), nil)
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return domain.ValidationError("output directory cannot be empty", nil)
	}
	if opts.SaveFilename == "" || strings.ContainsAny(opts.SaveFilename, `/\`) {
		return domain.ValidationError(fmt.Sprintf("invalid save filename %q", opts.SaveFilename), nil)
	}
	return nil
}
