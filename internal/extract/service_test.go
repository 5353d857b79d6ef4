package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) seed(pages ...int) *store.PageStore {
	h.t.Helper()
	st := store.New(h.outputRoot, h.pdfPath, nil)
	require.NoError(h.t, st.Prepare())
	for _, p := range pages {
		require.NoError(h.t, st.WriteResult(domain.PageResult{
			PageNumber:       p,
			Text:             domain.OK("old text"),
			ImageDescription: domain.OK("old description"),
		}))
	}
	return st
}

func pageNumbers(results []domain.PageResult) []int {
	out := make([]int, 0, len(results))
	for _, r := range results {
		out = append(out, r.PageNumber)
	}
	return out
}

func span(from, to int) []int {
	var out []int
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}

func TestRun_ThreePageDocument(t *testing.T) {
	h := newHarness(t, 3)

	summary, err := h.run(domain.DefaultRunOptions())
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, []int{1, 2, 3}, pageNumbers(summary.Results))
	for _, r := range summary.Results {
		assert.False(t, r.Text.IsDegraded(), "page %d text", r.PageNumber)
		assert.False(t, r.ImageDescription.IsDegraded(), "page %d description", r.PageNumber)
		assert.Contains(t, r.Text.Value, "Text content of page")
	}
	assert.Equal(t, 3, summary.Stats.PagesProcessed)
	assert.NotEmpty(t, summary.RunID)

	combined, err := os.ReadFile(filepath.Join(h.docRoot(), "combined_results.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(combined), `"pageNumber"`))

	leftovers, err := filepath.Glob(filepath.Join(h.docRoot(), "temp_page_*.pdf"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "single-page artifacts are removed")

	for p := 1; p <= 3; p++ {
		assert.FileExists(t, filepath.Join(h.docRoot(), "images", fmt.Sprintf("page.%d.png", p)))
	}
}

func TestRun_ResumesAfterLastProcessedPage(t *testing.T) {
	for _, k := range []int{1, 4, 9} {
		h := newHarness(t, 10)
		h.seed(span(1, k)...)

		summary, err := h.run(domain.DefaultRunOptions())
		require.NoError(t, err)

		assert.Equal(t, span(k+1, 10), h.rasterizer.calls, "k=%d", k)
		assert.Equal(t, span(1, 10), pageNumbers(summary.Results))

		st := store.New(h.outputRoot, h.pdfPath, nil)
		for p := 1; p <= k; p++ {
			r, err := st.ReadResult(p)
			require.NoError(t, err)
			assert.Equal(t, "old description", r.ImageDescription.Value, "page %d untouched", p)
		}
	}
}

func TestRun_DeletedResultsAreRedone(t *testing.T) {
	h := newHarness(t, 6)
	st := h.seed(1, 2, 3, 4, 5)
	require.NoError(t, os.Remove(st.ResultPath(4)))
	require.NoError(t, os.Remove(st.ResultPath(5)))

	summary, err := h.run(domain.DefaultRunOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{4, 5, 6}, h.rasterizer.calls)
	assert.Equal(t, span(1, 6), pageNumbers(summary.Results))
}

// With every page already stored and no range given, the run starts at the
// last stored page, skips it and rebuilds the combined file. It does not fail
// with a range error pointing past the end of the document.
func TestRun_FullyProcessedDocumentOnlyRecombines(t *testing.T) {
	h := newHarness(t, 4)
	h.seed(1, 2, 3, 4)

	summary, err := h.run(domain.DefaultRunOptions())
	require.NoError(t, err)

	assert.Empty(t, h.rasterizer.calls)
	assert.Equal(t, 1, summary.Stats.PagesSkipped)
	assert.Len(t, summary.Results, 4)
}

func TestRun_ExplicitRangeReprocessesExistingPages(t *testing.T) {
	h := newHarness(t, 5)
	h.seed(1, 2, 3, 4, 5)

	summary, err := h.run(domain.RunOptions{StartPage: 2, EndPage: 4})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4}, h.rasterizer.calls)
	require.Len(t, summary.Results, 5)
	for _, r := range summary.Results {
		if r.PageNumber >= 2 && r.PageNumber <= 4 {
			assert.NotEqual(t, "old description", r.ImageDescription.Value, "page %d", r.PageNumber)
		} else {
			assert.Equal(t, "old description", r.ImageDescription.Value, "page %d", r.PageNumber)
		}
	}
}

func TestRun_ExplicitRangeClampedToDocument(t *testing.T) {
	h := newHarness(t, 3)

	summary, err := h.run(domain.RunOptions{StartPage: 2, EndPage: 50})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, h.rasterizer.calls)
	assert.Equal(t, domain.PageRange{Start: 2, End: 3, Explicit: true}, summary.Stats.Range)
}

// Changing only the end page still counts as an explicit range, so pages that
// already have results are processed again. This is current behaviour.
func TestRun_EndPageOnlyIsExplicit(t *testing.T) {
	h := newHarness(t, 5)
	h.seed(1, 2, 3)

	_, err := h.run(domain.RunOptions{EndPage: 4})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, h.rasterizer.calls)
}

func TestRun_InvalidRangeWritesNothing(t *testing.T) {
	for name, opts := range map[string]domain.RunOptions{
		"reversed":        {StartPage: 5, EndPage: 3},
		"start past last": {StartPage: 8},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 6)

			_, err := h.run(opts)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeRange))

			assert.Empty(t, h.rasterizer.calls)
			_, statErr := os.Stat(h.outputRoot)
			assert.True(t, os.IsNotExist(statErr), "no files are written")
		})
	}
}

func TestRun_PageFailureIsIsolated(t *testing.T) {
	h := newHarness(t, 10)
	h.rasterizer.failOn[7] = true

	summary, err := h.run(domain.DefaultRunOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 8, 9, 10}, pageNumbers(summary.Results))
	assert.Equal(t, []int{7}, summary.Stats.FailedPages)
	assert.NoFileExists(t, filepath.Join(h.docRoot(), "json", "page_7.json"))

	log, err := os.ReadFile(filepath.Join(h.docRoot(), "error_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(log), "Error on page 7: render page 7: convert failed for page 7")
}

func TestRun_RetriesFailedPageOnNextRun(t *testing.T) {
	h := newHarness(t, 4)
	h.rasterizer.failOn[2] = true

	_, err := h.run(domain.DefaultRunOptions())
	require.NoError(t, err)

	// Page 2 sits below the resume point, so only an explicit range revisits it.
	h.rasterizer.failOn[2] = false
	h.rasterizer.calls = nil
	summary, err := h.run(domain.RunOptions{StartPage: 2, EndPage: 2})
	require.NoError(t, err)

	assert.Equal(t, []int{2}, h.rasterizer.calls)
	assert.Equal(t, []int{1, 2, 3, 4}, pageNumbers(summary.Results))
}

func TestRun_CombineIsIdempotent(t *testing.T) {
	h := newHarness(t, 3)
	combinedPath := filepath.Join(h.docRoot(), "combined_results.json")

	_, err := h.run(domain.DefaultRunOptions())
	require.NoError(t, err)
	first, err := os.ReadFile(combinedPath)
	require.NoError(t, err)

	_, err = h.run(domain.DefaultRunOptions())
	require.NoError(t, err)
	second, err := os.ReadFile(combinedPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{1, 2, 3}, h.rasterizer.calls, "second run processes nothing")
}

func TestRun_DegradedDescriptionIsPersistedAsSentinel(t *testing.T) {
	h := newHarness(t, 1)
	failed := domain.Degraded("connection refused", domain.DescriptionFailedSentinel(3))
	h.describer.field = &failed

	summary, err := h.run(domain.DefaultRunOptions())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].ImageDescription.IsDegraded())

	data, err := os.ReadFile(filepath.Join(h.docRoot(), "json", "page_1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"imageDescription": "[Failed to get image description after 3 attempts]"`)
}

func TestRun_LoadFailureIsFatal(t *testing.T) {
	h := newHarness(t, 3)
	svc := NewService(Dependencies{
		Loader: &fakeLoader{err: domain.ConversionError("Failed to load PDF document", errors.New("bad xref"))},
	}, h.outputRoot, nil)

	_, err := svc.Process(context.Background(), h.pdfPath, domain.DefaultRunOptions(), nil)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConversion))
	_, statErr := os.Stat(h.outputRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_RejectsNonPDFPath(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.service().Process(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), domain.DefaultRunOptions(), nil)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestRun_EmitsEvents(t *testing.T) {
	h := newHarness(t, 2)
	h.seed(1)
	h.rasterizer.failOn[2] = true

	events := make(chan domain.StreamEvent, 16)
	_, err := h.service().Run(context.Background(), h.pdfPath, domain.DefaultRunOptions(), events)
	require.NoError(t, err)
	close(events)

	var types []domain.EventType
	for e := range events {
		types = append(types, e.Type)
		if e.Type == domain.EventComplete {
			stats, ok := e.Payload.(domain.ProcessingStats)
			require.True(t, ok)
			assert.Equal(t, 1, stats.PagesSkipped)
			assert.Equal(t, []int{2}, stats.FailedPages)
		}
	}
	assert.Equal(t, []domain.EventType{
		domain.EventStart,
		domain.EventPageSkipped,
		domain.EventPageProcessing,
		domain.EventPageFailed,
		domain.EventComplete,
	}, types)
}
