package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spherical/pdf-describer/internal/domain"
)

// Loader loads PDFs with pdfcpu in relaxed validation mode.
type Loader struct {
	conf *model.Configuration
}

// NewLoader creates a pdfcpu-backed document loader.
func NewLoader() *Loader {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Loader{conf: conf}
}

// Load parses data far enough to count its pages.
func (l *Loader) Load(data []byte) (domain.Document, error) {
	if len(data) == 0 {
		return nil, domain.ValidationError("PDF data is empty", nil)
	}
	pageCount, err := api.PageCount(bytes.NewReader(data), l.conf)
	if err != nil {
		return nil, domain.ConversionError("Failed to load PDF document", err)
	}
	return &Document{data: data, pageCount: pageCount, conf: l.conf}, nil
}

// Document is a PDF held in memory.
type Document struct {
	data      []byte
	pageCount int
	conf      *model.Configuration
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pageCount }

// IsolatePage returns a standalone PDF containing only the given page.
func (d *Document) IsolatePage(pageNumber int) ([]byte, error) {
	if pageNumber < 1 || pageNumber > d.pageCount {
		return nil, domain.ValidationError(fmt.Sprintf("page %d out of range 1-%d", pageNumber, d.pageCount), nil)
	}
	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.data), &buf, []string{strconv.Itoa(pageNumber)}, d.conf); err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("Failed to isolate page %d", pageNumber), err)
	}
	return buf.Bytes(), nil
}

// Close releases the document.
func (d *Document) Close() error {
	d.data = nil
	return nil
}
