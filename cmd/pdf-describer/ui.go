package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spherical/pdf-describer/pkg/describer"
)

// UI prints status lines and a page progress bar.
type UI struct {
	noColor bool
	bar     *progressbar.ProgressBar
}

// NewUI creates a UI. noColor disables ANSI colours globally.
func NewUI(noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{noColor: noColor}
}

func (ui *UI) printf(c color.Attribute, symbol, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if ui.noColor {
		fmt.Printf("%s %s\n", symbol, msg)
		return
	}
	color.New(c).Printf("%s %s\n", symbol, msg)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.printf(color.FgGreen, "✓", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.printf(color.FgYellow, "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.printf(color.FgCyan, "ℹ", format, args...)
}

func (ui *UI) newBar(total int) {
	ui.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("pages"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(!ui.noColor),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Follow consumes run events until the channel is closed.
func (ui *UI) Follow(events <-chan describer.StreamEvent) {
	for event := range events {
		switch event.Type {
		case describer.EventStart:
			ui.newBar(event.Total)

		case describer.EventPageProcessing:
			if ui.bar != nil {
				ui.bar.Describe(fmt.Sprintf("page %d", event.PageNumber))
			}

		case describer.EventPageSkipped, describer.EventPageComplete:
			ui.advance()

		case describer.EventPageFailed:
			ui.advance()
			if ui.bar != nil {
				_ = ui.bar.Clear()
			}
			ui.Warning("Page %d failed: %v", event.PageNumber, event.Payload)

		case describer.EventComplete:
			if ui.bar != nil {
				_ = ui.bar.Finish()
			}
		}
	}
}

func (ui *UI) advance() {
	if ui.bar != nil {
		_ = ui.bar.Add(1)
	}
}
