package domain

import (
	"context"
	"time"
)

// DocumentLoader opens raw PDF bytes for page-level access
type DocumentLoader interface {
	Load(data []byte) (Document, error)
}

// Document is a loaded PDF
type Document interface {
	// PageCount returns the number of pages in the document
	PageCount() int

	// IsolatePage copies a single 1-based page into a standalone PDF
	IsolatePage(pageNumber int) ([]byte, error)

	Close() error
}

// TextParser extracts text from PDF bytes, reading at most maxPages pages
type TextParser interface {
	ParseText(data []byte, maxPages int) (*ParseResult, error)
}

// Rasterizer renders a page to an image file and returns its path
type Rasterizer interface {
	Render(ctx context.Context, pageNumber int) (string, error)
}

// Describer produces a natural-language description of a page image.
// Exhausted retries come back as a degraded Field, not an error.
type Describer interface {
	Describe(ctx context.Context, image []byte, timeout time.Duration) (Field, error)
}
