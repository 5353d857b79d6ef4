package pdf

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/pdf-describer/internal/domain"
)

// pageSeparator is placed between pages in parsed text, as pdftotext does.
const pageSeparator = "\f"

// TextParser extracts text with go-fitz.
type TextParser struct{}

// NewTextParser creates a go-fitz backed text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// ParseText returns the text of the first maxPages pages, separated by form
// feeds. maxPages <= 0 means all pages.
func (p *TextParser) ParseText(data []byte, maxPages int) (*domain.ParseResult, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.ExtractionError("Failed to open PDF for text extraction", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, domain.ExtractionError(fmt.Sprintf("Failed to extract text from page %d", i+1), err)
		}
		if i > 0 {
			b.WriteString(pageSeparator)
		}
		b.WriteString(text)
	}

	return &domain.ParseResult{Content: b.String(), Pages: n}, nil
}
