// Package describer is the programmatic entry point: it turns a PDF into
// per-page text and image descriptions stored on disk.
package describer

import (
	"context"
	"net/http"
	"time"

	"github.com/spherical/pdf-describer/internal/config"
	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/extract"
	"github.com/spherical/pdf-describer/internal/llm"
	"github.com/spherical/pdf-describer/internal/observability"
	"github.com/spherical/pdf-describer/internal/pdf"
)

// Re-export types for the public API
type (
	Config      = config.Config
	PageResult  = domain.PageResult
	StreamEvent = domain.StreamEvent
	EventType   = domain.EventType
	Stats       = domain.ProcessingStats
	Summary     = extract.Summary
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageSkipped    = domain.EventPageSkipped
	EventPageComplete   = domain.EventPageComplete
	EventPageFailed     = domain.EventPageFailed
	EventComplete       = domain.EventComplete
)

// Options select the pages of one run. Zero values mean "use the default":
// the whole document, resuming after the last processed page.
type Options struct {
	StartPage int
	EndPage   int
	Timeout   time.Duration
}

func (o Options) runOptions() domain.RunOptions {
	return domain.RunOptions{StartPage: o.StartPage, EndPage: o.EndPage, Timeout: o.Timeout}
}

// Client is the main entry point for the describer library
type Client struct {
	cfg     *config.Config
	service *extract.Service
	logger  *observability.Logger
}

// NewClient creates a client from the default configuration plus
// environment overrides.
func NewClient() (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("Failed to load configuration", err)
	}
	return NewClientWithConfig(cfg, nil)
}

// NewClientWithConfig creates a client with custom configuration. A nil
// logger builds one from cfg.Logging.
func NewClientWithConfig(cfg *config.Config, logger *observability.Logger) (*Client, error) {
	if cfg == nil {
		return nil, domain.ConfigError("configuration is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("Invalid configuration", err)
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			ServiceName: "pdf-describer",
		})
	}

	generator := llm.NewClient(llm.ClientConfig{
		URL:            cfg.Inference.URL(),
		Model:          cfg.Inference.Model,
		TargetLanguage: cfg.Inference.TargetLanguage,
		APIKey:         cfg.Inference.APIKey,
	}, &http.Client{})
	policy := llm.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay}

	render := cfg.Render
	service := extract.NewService(extract.Dependencies{
		Loader:    pdf.NewLoader(),
		Parser:    pdf.NewTextParser(),
		Describer: llm.NewDescriber(generator, policy, logger),
		Rasterizers: func(pdfPath, imagesDir string) (domain.Rasterizer, error) {
			return pdf.NewRasterizer(pdfPath, pdf.RenderOptions{
				Density:      render.Density,
				OutputDir:    imagesDir,
				SaveFilename: render.SaveFilename,
				Format:       render.Format,
				Width:        render.Width,
				Height:       render.Height,
			})
		},
	}, cfg.Output.RootDir, logger)

	return &Client{cfg: cfg, service: service, logger: logger}, nil
}

func (c *Client) options(opts Options) domain.RunOptions {
	run := opts.runOptions()
	if run.Timeout <= 0 {
		run.Timeout = c.cfg.Inference.Timeout
	}
	return run
}

// ProcessDocument runs the pipeline and returns every stored page result of
// the document in page order.
func (c *Client) ProcessDocument(ctx context.Context, pdfPath string, opts Options) ([]PageResult, error) {
	return c.service.Process(ctx, pdfPath, c.options(opts), nil)
}

// Run is ProcessDocument with run statistics. Events are sent to eventCh
// without blocking; a nil channel disables them.
func (c *Client) Run(ctx context.Context, pdfPath string, opts Options, eventCh chan<- StreamEvent) (*Summary, error) {
	return c.service.Run(ctx, pdfPath, c.options(opts), eventCh)
}

// ProcessDocument builds a client from the environment and processes one
// document.
func ProcessDocument(ctx context.Context, pdfPath string, opts Options) ([]PageResult, error) {
	c, err := NewClient()
	if err != nil {
		return nil, err
	}
	return c.ProcessDocument(ctx, pdfPath, opts)
}
