package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/observability"
)

const (
	// isolatedMaxPages bounds parsing of the single-page artifact.
	isolatedMaxPages = 10
	minTextLength    = 10
)

var pageBreak = regexp.MustCompile(`\f|\n{3,}`)

// TextExtractor pulls the text of one page out of a document, first from an
// isolated single-page copy and then from a split of the whole document.
type TextExtractor struct {
	doc     domain.Document
	data    []byte
	parser  domain.TextParser
	tempDir string
	logger  *observability.Logger

	blocks   []string
	blockErr error
	split    bool
}

// NewTextExtractor creates an extractor for one run over doc. data is the raw
// document, used by the whole-document fallback. Temporary single-page
// artifacts are written to tempDir.
func NewTextExtractor(doc domain.Document, data []byte, parser domain.TextParser, tempDir string, logger *observability.Logger) *TextExtractor {
	if logger == nil {
		logger = observability.Nop()
	}
	return &TextExtractor{
		doc:     doc,
		data:    data,
		parser:  parser,
		tempDir: tempDir,
		logger:  logger.WithPrefix("text"),
	}
}

// Extract returns the page text. It never fails: when neither tier produces
// usable text the field is degraded.
func (e *TextExtractor) Extract(pageNumber int) domain.Field {
	text, err := e.fromIsolatedPage(pageNumber)
	if err == nil {
		return e.checked(pageNumber, text)
	}
	e.logger.Warn("Could not extract text from isolated page %d: %v; falling back to full document", pageNumber, err)

	field, err := e.fromWholeDocument(pageNumber)
	if err != nil {
		e.logger.Error("Text extraction failed for page %d: %v", pageNumber, err)
		return domain.Degraded(err.Error(), domain.TextFailedSentinel(pageNumber))
	}
	if field.IsDegraded() {
		return field
	}
	return e.checked(pageNumber, field)
}

func (e *TextExtractor) fromIsolatedPage(pageNumber int) (domain.Field, error) {
	single, err := e.doc.IsolatePage(pageNumber)
	if err != nil {
		return domain.Field{}, err
	}

	tempPath := filepath.Join(e.tempDir, fmt.Sprintf("temp_page_%d.pdf", pageNumber))
	if err := os.WriteFile(tempPath, single, 0o644); err != nil {
		return domain.Field{}, errors.Wrap(err, "write single-page artifact")
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Failed to remove %s: %v", tempPath, err)
		}
	}()

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return domain.Field{}, errors.Wrap(err, "read single-page artifact")
	}
	parsed, err := e.parser.ParseText(data, isolatedMaxPages)
	if err != nil {
		return domain.Field{}, err
	}
	return normalizeText(parsed.Content), nil
}

func (e *TextExtractor) fromWholeDocument(pageNumber int) (domain.Field, error) {
	if !e.split {
		e.blocks, e.blockErr = e.splitDocument()
		e.split = true
	}
	if e.blockErr != nil {
		return domain.Field{}, e.blockErr
	}
	if len(e.blocks) < pageNumber {
		e.logger.Warn("Only %d text blocks found, cannot locate page %d", len(e.blocks), pageNumber)
		return domain.Degraded(
			fmt.Sprintf("%d blocks for page %d", len(e.blocks), pageNumber),
			domain.UnreliableTextSentinel(pageNumber),
		), nil
	}
	return domain.OK(e.blocks[pageNumber-1]), nil
}

func (e *TextExtractor) splitDocument() ([]string, error) {
	parsed, err := e.parser.ParseText(e.data, e.doc.PageCount())
	if err != nil {
		return nil, err
	}
	text := normalizeText(parsed.Content)
	if text.IsDegraded() {
		return nil, errors.New(text.Reason)
	}
	return pageBreak.Split(text.Value, -1), nil
}

func (e *TextExtractor) checked(pageNumber int, text domain.Field) domain.Field {
	if !text.IsDegraded() && len(strings.TrimSpace(text.Value)) < minTextLength {
		e.logger.Warn("Very little text extracted from page %d", pageNumber)
	}
	return text
}

// normalizeText coerces a parser result into text. Strings pass through;
// otherwise a Text/text field, a Stringer, JSON and finally fmt.Sprint are
// tried in that order.
func normalizeText(v any) (field domain.Field) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			field = domain.Degraded(msg, domain.TextConversionSentinel(msg))
		}
	}()

	switch t := v.(type) {
	case string:
		return domain.OK(t)
	case nil:
		return domain.OK("")
	case map[string]any:
		if s, ok := textOf(t["text"]); ok {
			return domain.OK(s)
		}
		if s, ok := textOf(t["Text"]); ok {
			return domain.OK(s)
		}
	case map[string]string:
		if s, ok := t["text"]; ok {
			return domain.OK(s)
		}
	}

	if s, ok := textField(reflect.ValueOf(v)); ok {
		return domain.OK(s)
	}
	if s, ok := v.(fmt.Stringer); ok {
		return domain.OK(s.String())
	}
	if data, err := json.Marshal(v); err == nil {
		return domain.OK(string(data))
	}
	return domain.OK(fmt.Sprint(v))
}

func textOf(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func textField(rv reflect.Value) (string, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}
	f := rv.FieldByName("Text")
	if !f.IsValid() || f.Kind() != reflect.String {
		return "", false
	}
	return f.String(), true
}
