package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"github.com/spherical/pdf-describer/internal/domain"
)

const manifestVersion = 1

var resultFilePattern = regexp.MustCompile(`^page_(\d+)\.json$`)

// manifest is the index of processed pages. It replaces parsing result file
// names on every run; the directory scan only seeds it for directories that
// predate the manifest.
type manifest struct {
	Version int   `json:"version"`
	Pages   []int `json:"pages"`

	dirty bool
}

// add records a page and reports whether the manifest changed.
func (m *manifest) add(page int) bool {
	i, found := slices.BinarySearch(m.Pages, page)
	if found {
		return m.dirty
	}
	m.Pages = slices.Insert(m.Pages, i, page)
	return true
}

func (s *PageStore) manifestPath() string { return filepath.Join(s.root, manifestFileName) }

func (s *PageStore) loadManifest() (*manifest, error) {
	if s.manifest != nil {
		return s.manifest, nil
	}

	data, err := os.ReadFile(s.manifestPath())
	switch {
	case err == nil:
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, domain.IOError("Failed to decode manifest", err)
		}
		slices.Sort(m.Pages)
		m.Pages = slices.Compact(m.Pages)
		s.manifest = &m
	case errors.Is(err, fs.ErrNotExist):
		m, err := s.scanResults()
		if err != nil {
			return nil, err
		}
		s.manifest = m
	default:
		return nil, domain.IOError("Failed to read manifest", err)
	}
	return s.manifest, nil
}

// scanResults rebuilds the manifest from result file names. Names that do
// not parse are ignored. The rebuilt manifest is persisted on the next write.
func (s *PageStore) scanResults() (*manifest, error) {
	m := &manifest{Version: manifestVersion}

	entries, err := os.ReadDir(s.jsonDir())
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, domain.IOError("Failed to scan result directory", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := resultFilePattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		page, err := strconv.Atoi(match[1])
		if err != nil || page < 1 {
			continue
		}
		m.Pages = append(m.Pages, page)
	}
	slices.Sort(m.Pages)
	m.Pages = slices.Compact(m.Pages)
	m.dirty = len(m.Pages) > 0

	if m.dirty {
		s.logger.Info("Rebuilt manifest from %d existing result files", len(m.Pages))
	}
	return m, nil
}

func (s *PageStore) recordInManifest(page int) error {
	m, err := s.loadManifest()
	if err != nil {
		return err
	}
	if !m.add(page) {
		return nil
	}
	return s.saveManifest(m)
}

func (s *PageStore) saveManifest(m *manifest) error {
	m.Version = manifestVersion
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return domain.IOError("Failed to encode manifest", err)
	}
	if err := writeFileAtomic(s.manifestPath(), data); err != nil {
		return domain.IOError("Failed to write manifest", err)
	}
	m.dirty = false
	return nil
}
