// Package store persists per-page results and the combined result set for a
// single document.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf-describer/internal/domain"
	"github.com/spherical/pdf-describer/internal/observability"
)

const (
	imagesDirName    = "images"
	jsonDirName      = "json"
	combinedFileName = "combined_results.json"
	errorLogFileName = "error_log.txt"
	manifestFileName = "manifest.json"
)

// record is the on-disk form of a PageResult.
type record struct {
	PageNumber       int    `json:"pageNumber"`
	Text             string `json:"text"`
	ImageDescription string `json:"imageDescription"`
}

func toRecord(r domain.PageResult) record {
	return record{
		PageNumber:       r.PageNumber,
		Text:             r.Text.String(),
		ImageDescription: r.ImageDescription.String(),
	}
}

func (r record) toResult() domain.PageResult {
	return domain.PageResult{
		PageNumber:       r.PageNumber,
		Text:             domain.ParseField(r.Text),
		ImageDescription: domain.ParseField(r.ImageDescription),
	}
}

// PageStore owns the on-disk layout of one document:
//
//	<root>/images/page.N.png
//	<root>/json/page_N.json
//	<root>/combined_results.json
//	<root>/error_log.txt
//	<root>/manifest.json
type PageStore struct {
	root     string
	logger   *observability.Logger
	manifest *manifest
}

// New returns a store rooted at <outputRoot>/<document name>. Nothing is
// created on disk until Prepare is called.
func New(outputRoot, pdfPath string, logger *observability.Logger) *PageStore {
	name := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return NewAt(filepath.Join(outputRoot, name), logger)
}

// NewAt returns a store rooted at dir.
func NewAt(dir string, logger *observability.Logger) *PageStore {
	if logger == nil {
		logger = observability.Nop()
	}
	return &PageStore{root: dir, logger: logger.WithPrefix("store")}
}

// Root returns the document directory.
func (s *PageStore) Root() string { return s.root }

// ImagesDir returns the directory page images are rendered into.
func (s *PageStore) ImagesDir() string { return filepath.Join(s.root, imagesDirName) }

func (s *PageStore) jsonDir() string { return filepath.Join(s.root, jsonDirName) }

// ResultPath returns the path of a page's result record.
func (s *PageStore) ResultPath(pageNumber int) string {
	return filepath.Join(s.jsonDir(), fmt.Sprintf("page_%d.json", pageNumber))
}

// CombinedPath returns the path of the combined result file.
func (s *PageStore) CombinedPath() string { return filepath.Join(s.root, combinedFileName) }

// ErrorLogPath returns the path of the append-only error log.
func (s *PageStore) ErrorLogPath() string { return filepath.Join(s.root, errorLogFileName) }

// Prepare creates the document directories.
func (s *PageStore) Prepare() error {
	for _, dir := range []string{s.root, s.ImagesDir(), s.jsonDir()} {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		s.logger.Info("Creating directory: %s", dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.IOError("Failed to create directory "+dir, err)
		}
	}
	return nil
}

// ExistingPageNumbers returns the pages recorded as processed whose result
// file is still on disk.
func (s *PageStore) ExistingPageNumbers() (map[int]struct{}, error) {
	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}
	out := make(map[int]struct{}, len(m.Pages))
	for _, p := range m.Pages {
		if s.HasResult(p) {
			out[p] = struct{}{}
		}
	}
	if len(out) < len(m.Pages) {
		s.logger.Warn("Manifest lists %d pages but only %d result files exist", len(m.Pages), len(out))
	}
	return out, nil
}

// ResumePage returns the highest page with a result on disk, or 0 if none.
func (s *PageStore) ResumePage() (int, error) {
	pages, err := s.ExistingPageNumbers()
	if err != nil {
		return 0, err
	}
	resume := 0
	for p := range pages {
		resume = max(resume, p)
	}
	return resume, nil
}

// HasResult reports whether a result record exists for the page.
func (s *PageStore) HasResult(pageNumber int) bool {
	info, err := os.Stat(s.ResultPath(pageNumber))
	return err == nil && info.Mode().IsRegular()
}

// WriteResult persists a page result, replacing any previous one.
func (s *PageStore) WriteResult(result domain.PageResult) error {
	data, err := json.MarshalIndent(toRecord(result), "", "  ")
	if err != nil {
		return domain.IOError("Failed to encode page result", err)
	}

	path := s.ResultPath(result.PageNumber)
	if err := writeFileAtomic(path, data); err != nil {
		return domain.IOError(fmt.Sprintf("Failed to write result for page %d", result.PageNumber), err)
	}

	s.logger.Info("Saved page %d result to %s", result.PageNumber, path)

	// The result file is the record; a stale manifest is corrected by
	// ExistingPageNumbers.
	if err := s.recordInManifest(result.PageNumber); err != nil {
		s.logger.Warn("Failed to update manifest for page %d: %v", result.PageNumber, err)
	}
	return nil
}

// ReadResult loads a single page result.
func (s *PageStore) ReadResult(pageNumber int) (domain.PageResult, error) {
	data, err := os.ReadFile(s.ResultPath(pageNumber))
	if err != nil {
		return domain.PageResult{}, domain.IOError(fmt.Sprintf("Failed to read result for page %d", pageNumber), err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.PageResult{}, domain.IOError(fmt.Sprintf("Failed to decode result for page %d", pageNumber), err)
	}
	return rec.toResult(), nil
}

// LoadAll returns the results of pages 1..pageCount that have one, in
// ascending page order.
func (s *PageStore) LoadAll(pageCount int) ([]domain.PageResult, error) {
	results := make([]domain.PageResult, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		if !s.HasResult(page) {
			continue
		}
		r, err := s.ReadResult(page)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// WriteCombined persists the combined result set. Equal input produces
// byte-identical output.
func (s *PageStore) WriteCombined(results []domain.PageResult) error {
	records := make([]record, 0, len(results))
	for _, r := range results {
		records = append(records, toRecord(r))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return domain.IOError("Failed to encode combined results", err)
	}
	if err := writeFileAtomic(s.CombinedPath(), data); err != nil {
		return domain.IOError("Failed to write combined results", err)
	}
	s.logger.Info("Saved combined results to %s", s.CombinedPath())
	return nil
}

// writeFileAtomic writes data to a sibling temp file and renames it over
// path, so readers never see a partial record.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
