package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spherical/pdf-describer/internal/config"
	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/observability"
	"github.com/spherical/pdf-describer/pkg/describer"
)

type rootFlags struct {
	cfgFile   string
	timeout   time.Duration
	verbose   bool
	logFormat string
	noColor   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "pdf-describer <pdf-file> [startPage] [endPage]",
		Short: "Extract page text and describe page images with a vision model",
		Long: `pdf-describer renders every page of a PDF, extracts its text and asks an
Ollama vision model to describe the page image. Results are written per page
under <output root>/<document name>/ and combined into combined_results.json.

Re-running the command resumes after the last processed page. Passing a page
range reprocesses every page in it.`,
		Version:       version,
		Args:          cobra.RangeArgs(1, 3),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parsePageArgs(args[1:])
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return run(cmd.Context(), args[0], opts, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.cfgFile, "config", "c", "", "config file path")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-request inference timeout (default from config)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "log format: console or json")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	return cmd
}

// parsePageArgs reads the optional start and end page arguments.
func parsePageArgs(args []string) (describer.Options, error) {
	opts := describer.Options{StartPage: domain.DefaultStartPage, EndPage: domain.DefaultEndPage}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return opts, fmt.Errorf("invalid start page %q: must be an integer", args[0])
		}
		opts.StartPage = n
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return opts, fmt.Errorf("invalid end page %q: must be an integer", args[1])
		}
		opts.EndPage = n
	}
	return opts, nil
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.cfgFile)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	if flags.timeout > 0 {
		cfg.Inference.Timeout = flags.timeout
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, pdfPath string, opts describer.Options, flags *rootFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ui := NewUI(flags.noColor)
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stderr,
		ServiceName: "pdf-describer",
		NoColor:     flags.noColor,
	})

	client, err := describer.NewClientWithConfig(cfg, logger)
	if err != nil {
		return err
	}

	ui.Info("Processing PDF: %s", pdfPath)
	ui.Info("Model %s at %s", cfg.Inference.Model, cfg.Inference.URL())

	events := make(chan describer.StreamEvent, 100)
	type outcome struct {
		summary *describer.Summary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := client.Run(ctx, pdfPath, opts, events)
		close(events)
		done <- outcome{summary, err}
	}()

	ui.Follow(events)

	out := <-done
	if out.err != nil {
		return out.err
	}

	stats := out.summary.Stats
	if n := len(stats.FailedPages); n > 0 {
		ui.Warning("%d page(s) failed: %v (details in error_log.txt)", n, stats.FailedPages)
	}
	if stats.PagesSkipped > 0 {
		ui.Info("Skipped %d already processed page(s)", stats.PagesSkipped)
	}
	ui.Success("Processed %d pages successfully", len(out.summary.Results))
	return nil
}
