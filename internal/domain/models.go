package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Defaults applied when the caller leaves RunOptions zero-valued.
const (
	DefaultStartPage = 1
	DefaultEndPage   = math.MaxInt
	DefaultTimeout   = 60 * time.Second
)

// FieldStatus tags a PageResult field as usable data or a degraded placeholder.
type FieldStatus int

const (
	FieldOK FieldStatus = iota
	FieldDegraded
)

// Field is one value of a PageResult. A degraded field carries the reason it
// degraded and the sentinel written in its place on disk.
type Field struct {
	Status   FieldStatus
	Value    string
	Reason   string
	sentinel string
}

// OK wraps a successfully produced value.
func OK(value string) Field {
	return Field{Status: FieldOK, Value: value}
}

// Degraded records a failure that is kept in the data model instead of
// aborting the page.
func Degraded(reason, sentinel string) Field {
	return Field{Status: FieldDegraded, Reason: reason, sentinel: sentinel}
}

// IsDegraded reports whether the field holds a placeholder.
func (f Field) IsDegraded() bool { return f.Status == FieldDegraded }

// String returns the storage form of the field.
func (f Field) String() string {
	if f.Status == FieldDegraded {
		return f.sentinel
	}
	return f.Value
}

// Sentinel strings written to storage in place of degraded values.
func UnreliableTextSentinel(page int) string {
	return fmt.Sprintf("[Unable to extract text reliably for page %d]", page)
}

func TextFailedSentinel(page int) string {
	return fmt.Sprintf("[Text extraction failed for page %d]", page)
}

func TextConversionSentinel(msg string) string {
	return fmt.Sprintf("[Text conversion failed: %s]", msg)
}

func DescriptionFailedSentinel(attempts int) string {
	return fmt.Sprintf("[Failed to get image description after %d attempts]", attempts)
}

var sentinelPatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`^\[Unable to extract text reliably for page \d+\]$`), "unreliable text extraction"},
	{regexp.MustCompile(`^\[Text extraction failed for page \d+\]$`), "text extraction failed"},
	{regexp.MustCompile(`^\[Text conversion failed: .*\]$`), "text conversion failed"},
	{regexp.MustCompile(`^\[Failed to get image description after \d+ attempts\]$`), "inference unavailable"},
}

// ParseField turns a stored string back into a Field, recognising sentinels.
func ParseField(s string) Field {
	for _, p := range sentinelPatterns {
		if p.re.MatchString(s) {
			return Degraded(p.reason, s)
		}
	}
	return OK(s)
}

// PageResult is the persisted outcome of one processed page.
type PageResult struct {
	PageNumber       int
	Text             Field
	ImageDescription Field
}

// ParseResult is what a TextParser returns. Content is usually a string but
// parsers are free to return structured values.
type ParseResult struct {
	Content any
	Pages   int
}

// RunOptions controls a single run over one document.
type RunOptions struct {
	StartPage int
	EndPage   int
	Timeout   time.Duration
}

// DefaultRunOptions returns the options used when the caller sets nothing.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		StartPage: DefaultStartPage,
		EndPage:   DefaultEndPage,
		Timeout:   DefaultTimeout,
	}
}

// WithDefaults fills zero fields.
func (o RunOptions) WithDefaults() RunOptions {
	if o.StartPage == 0 {
		o.StartPage = DefaultStartPage
	}
	if o.EndPage == 0 {
		o.EndPage = DefaultEndPage
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// IsExplicitRange reports whether the caller moved either page bound off its
// default. Changing only one bound still counts as explicit.
func (o RunOptions) IsExplicitRange() bool {
	return o.StartPage != DefaultStartPage || o.EndPage != DefaultEndPage
}

// PageRange is an inclusive, 1-based range of pages.
type PageRange struct {
	Start    int
	End      int
	Explicit bool
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r PageRange) String() string {
	return strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageSkipped    EventType = "page_skipped"
	EventPageComplete   EventType = "page_complete"
	EventPageFailed     EventType = "page_failed"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	Total      int         `json:"total,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ProcessingStats contains metadata about a run
type ProcessingStats struct {
	Range          PageRange
	PageCount      int
	PagesProcessed int
	PagesSkipped   int
	FailedPages    []int
	TotalTime      time.Duration
}
