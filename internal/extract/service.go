package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/observability"
	"github.com/spherical/pdf-describer/internal/pdf"
	"github.com/spherical/pdf-describer/internal/store"
)

// RasterizerFactory opens a rasterizer for pdfPath that writes into imagesDir.
type RasterizerFactory func(pdfPath, imagesDir string) (domain.Rasterizer, error)

// Dependencies are the collaborators a Service drives.
type Dependencies struct {
	Loader      domain.DocumentLoader
	Parser      domain.TextParser
	Describer   domain.Describer
	Rasterizers RasterizerFactory
}

// Summary is the outcome of one run.
type Summary struct {
	RunID   string
	Results []domain.PageResult
	Stats   domain.ProcessingStats
}

// Service orchestrates a resumable run over one document
type Service struct {
	deps       Dependencies
	outputRoot string
	validator  *pdf.Validator
	logger     *observability.Logger
}

// NewService creates a new processing service writing under outputRoot
func NewService(deps Dependencies, outputRoot string, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		deps:       deps,
		outputRoot: outputRoot,
		validator:  pdf.NewValidator(logger),
		logger:     logger.WithPrefix("extract"),
	}
}

// Process runs the pipeline and returns the combined results.
func (s *Service) Process(ctx context.Context, pdfPath string, opts domain.RunOptions, eventCh chan<- domain.StreamEvent) ([]domain.PageResult, error) {
	summary, err := s.Run(ctx, pdfPath, opts, eventCh)
	if err != nil {
		return nil, err
	}
	return summary.Results, nil
}

// Run handles the complete workflow: load, resolve the range, process each
// page, then rebuild the combined results. Page failures are logged and
// skipped; only load, range and combine failures are returned.
func (s *Service) Run(ctx context.Context, pdfPath string, opts domain.RunOptions, eventCh chan<- domain.StreamEvent) (*Summary, error) {
	startTime := time.Now()
	opts = opts.WithDefaults()
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)

	if err := s.validator.ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, domain.IOError("Failed to read "+pdfPath, err)
	}

	logger.Info("Loading PDF: %s", pdfPath)
	doc, err := s.deps.Loader.Load(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pageCount := doc.PageCount()
	logger.Info("PDF has %d pages", pageCount)

	st := store.New(s.outputRoot, pdfPath, logger)
	resume, err := st.ResumePage()
	if err != nil {
		return nil, err
	}
	if resume > 0 {
		logger.Info("Found existing results up to page %d", resume)
	}

	pages, err := ResolveRange(opts, pageCount, resume)
	if err != nil {
		logger.Error("%v", err)
		return nil, err
	}
	if pages.Explicit {
		logger.Info("Processing pages %s (explicit range)", pages)
	} else {
		logger.Info("Processing pages %s", pages)
	}

	if err := st.Prepare(); err != nil {
		return nil, err
	}

	rasterizer, err := s.deps.Rasterizers(pdfPath, st.ImagesDir())
	if err != nil {
		return nil, err
	}
	if c, ok := rasterizer.(io.Closer); ok {
		defer c.Close()
	}

	text := NewTextExtractor(doc, data, s.deps.Parser, st.Root(), logger)
	processor := NewPageProcessor(text, rasterizer, s.deps.Describer, st, opts.Timeout, logger)

	stats := domain.ProcessingStats{Range: pages, PageCount: pageCount}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Total:     pages.Len(),
		Payload:   fmt.Sprintf("Starting %s, pages %s", pdfPath, pages),
		Timestamp: time.Now(),
	})

	for page := pages.Start; page <= pages.End; page++ {
		done := page - pages.Start + 1

		if !pages.Explicit && st.HasResult(page) {
			logger.Info("Skipping page %d, already processed", page)
			stats.PagesSkipped++
			s.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageSkipped,
				PageNumber: page,
				Total:      pages.Len(),
				Timestamp:  time.Now(),
			})
			continue
		}

		logger.Info("Processing page %d of %d (%d%%)", page, pageCount, done*100/pages.Len())
		s.emitEvent(eventCh, domain.StreamEvent{
			Type:       domain.EventPageProcessing,
			PageNumber: page,
			Total:      pages.Len(),
			Timestamp:  time.Now(),
		})

		result, err := processor.Process(ctx, page)
		if err != nil {
			logger.Error("Error processing page %d: %v", page, err)
			stats.FailedPages = append(stats.FailedPages, page)
			if logErr := st.AppendError(page, err); logErr != nil {
				logger.Err(logErr, "Failed to record error for page %d", page)
			}
			s.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageFailed,
				PageNumber: page,
				Total:      pages.Len(),
				Payload:    err.Error(),
				Timestamp:  time.Now(),
			})
			continue
		}

		stats.PagesProcessed++
		s.emitEvent(eventCh, domain.StreamEvent{
			Type:       domain.EventPageComplete,
			PageNumber: page,
			Total:      pages.Len(),
			Payload:    result,
			Timestamp:  time.Now(),
		})
	}

	results, err := st.LoadAll(pageCount)
	if err != nil {
		return nil, err
	}
	if err := st.WriteCombined(results); err != nil {
		return nil, err
	}

	stats.TotalTime = time.Since(startTime)
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		Total:     pages.Len(),
		Payload:   stats,
		Timestamp: time.Now(),
	})

	logger.Info("Run complete: %d processed, %d skipped, %d failed in %v",
		stats.PagesProcessed, stats.PagesSkipped, len(stats.FailedPages), stats.TotalTime)

	return &Summary{RunID: runID, Results: results, Stats: stats}, nil
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn("Event channel full, dropping event: %s", event.Type)
		}
	}
}
