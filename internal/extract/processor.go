package extract

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/observability"
	"github.com/spherical/pdf-describer/internal/store"
)

// PageProcessor turns one page into a persisted PageResult.
type PageProcessor struct {
	text       *TextExtractor
	rasterizer domain.Rasterizer
	describer  domain.Describer
	store      *store.PageStore
	timeout    time.Duration
	logger     *observability.Logger
}

// NewPageProcessor wires the per-run collaborators.
func NewPageProcessor(text *TextExtractor, rasterizer domain.Rasterizer, describer domain.Describer, st *store.PageStore, timeout time.Duration, logger *observability.Logger) *PageProcessor {
	if logger == nil {
		logger = observability.Nop()
	}
	return &PageProcessor{
		text:       text,
		rasterizer: rasterizer,
		describer:  describer,
		store:      st,
		timeout:    timeout,
		logger:     logger.WithPrefix("page"),
	}
}

// Process extracts, renders, describes and stores one page. Degraded text or
// description is not an error; a returned error means no result was written.
func (p *PageProcessor) Process(ctx context.Context, pageNumber int) (domain.PageResult, error) {
	log := p.logger.WithInt("page", pageNumber)

	log.Debug("Extracting text")
	text := p.text.Extract(pageNumber)

	log.Debug("Rendering image")
	imagePath, err := p.rasterizer.Render(ctx, pageNumber)
	if err != nil {
		return domain.PageResult{}, errors.Wrapf(err, "render page %d", pageNumber)
	}
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return domain.PageResult{}, errors.Wrapf(err, "read image for page %d", pageNumber)
	}

	log.Debug("Requesting description")
	description, err := p.describer.Describe(ctx, image, p.timeout)
	if err != nil {
		return domain.PageResult{}, errors.Wrapf(err, "describe page %d", pageNumber)
	}

	result := domain.PageResult{
		PageNumber:       pageNumber,
		Text:             text,
		ImageDescription: description,
	}
	if err := p.store.WriteResult(result); err != nil {
		return domain.PageResult{}, errors.Wrapf(err, "save page %d", pageNumber)
	}
	return result, nil
}
