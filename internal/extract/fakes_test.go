package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeDocument isolates pages as "page:N" payloads.
type fakeDocument struct {
	pages      int
	isolateErr error
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) IsolatePage(n int) ([]byte, error) {
	if d.isolateErr != nil {
		return nil, d.isolateErr
	}
	return []byte("page:" + strconv.Itoa(n)), nil
}

func (d *fakeDocument) Close() error { return nil }

type fakeLoader struct {
	doc *fakeDocument
	err error
}

func (l *fakeLoader) Load([]byte) (domain.Document, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.doc, nil
}

// fakeParser answers "page:N" payloads with that page's text and anything
// else with the whole document.
type fakeParser struct {
	whole    any
	wholeErr error
	pageErr  error
	calls    []int
}

func (p *fakeParser) ParseText(data []byte, maxPages int) (*domain.ParseResult, error) {
	p.calls = append(p.calls, maxPages)
	if n, ok := strings.CutPrefix(string(data), "page:"); ok {
		if p.pageErr != nil {
			return nil, p.pageErr
		}
		return &domain.ParseResult{Content: "Text content of page " + n, Pages: 1}, nil
	}
	if p.wholeErr != nil {
		return nil, p.wholeErr
	}
	return &domain.ParseResult{Content: p.whole, Pages: maxPages}, nil
}

type fakeRasterizer struct {
	dir    string
	failOn map[int]bool
	calls  []int
}

func (r *fakeRasterizer) Render(_ context.Context, n int) (string, error) {
	r.calls = append(r.calls, n)
	if r.failOn[n] {
		return "", errors.Errorf("convert failed for page %d", n)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("page.%d.png", n))
	return path, os.WriteFile(path, pngBytes, 0o644)
}

type fakeDescriber struct {
	mu     sync.Mutex
	prefix string
	calls  int
	field  *domain.Field
}

func (d *fakeDescriber) Describe(_ context.Context, image []byte, _ time.Duration) (domain.Field, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.field != nil {
		return *d.field, nil
	}
	return domain.OK(fmt.Sprintf("%sdescription #%d of %d bytes", d.prefix, d.calls, len(image))), nil
}

type harness struct {
	t          *testing.T
	outputRoot string
	pdfPath    string
	doc        *fakeDocument
	parser     *fakeParser
	rasterizer *fakeRasterizer
	describer  *fakeDescriber
}

func newHarness(t *testing.T, pages int) *harness {
	t.Helper()
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 fake"), 0o644))

	return &harness{
		t:          t,
		outputRoot: filepath.Join(dir, "out"),
		pdfPath:    pdfPath,
		doc:        &fakeDocument{pages: pages},
		parser:     &fakeParser{},
		rasterizer: &fakeRasterizer{failOn: map[int]bool{}},
		describer:  &fakeDescriber{},
	}
}

func (h *harness) service() *Service {
	return NewService(Dependencies{
		Loader:    &fakeLoader{doc: h.doc},
		Parser:    h.parser,
		Describer: h.describer,
		Rasterizers: func(_ string, imagesDir string) (domain.Rasterizer, error) {
			h.rasterizer.dir = imagesDir
			return h.rasterizer, nil
		},
	}, h.outputRoot, nil)
}

func (h *harness) run(opts domain.RunOptions) (*Summary, error) {
	return h.service().Run(context.Background(), h.pdfPath, opts, nil)
}

func (h *harness) docRoot() string {
	return filepath.Join(h.outputRoot, "report")
}
