// Package cache maps image cache keys onto files under the output root.
//
// The filesystem is the only record: every lookup stats the file again and
// nothing is remembered between calls. Writers must publish files atomically
// (temp file plus rename) so a hit never points at a partial image.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.ngs.io/weather-maps-api/internal/domain"
)

// Entry is a cache hit.
type Entry struct {
	Key  domain.CacheKey
	Path string // Absolute file path.
	Rel  string // Slash-separated path relative to the output root.
}

// Index answers existence queries for rendered images.
type Index struct {
	root    string
	baseURL string
}

// NewIndex creates an index over root. baseURL is the externally visible
// prefix under which root is served.
func NewIndex(root, baseURL string) *Index {
	return &Index{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Root returns the output root directory.
func (i *Index) Root() string {
	return i.root
}

// Path returns the absolute file path for key.
func (i *Index) Path(key domain.CacheKey) string {
	return filepath.Join(i.root, filepath.FromSlash(key.RelPath()))
}

// URL joins the base URL and a relative image path.
func (i *Index) URL(rel string) string {
	return i.baseURL + "/" + strings.TrimLeft(rel, "/")
}

// Lookup returns the entry for key if the file exists and is readable.
// Any filesystem error is reported as a miss.
func (i *Index) Lookup(key domain.CacheKey) (Entry, bool) {
	p := i.Path(key)
	if !readable(p) {
		return Entry{}, false
	}
	return Entry{Key: key, Path: p, Rel: key.RelPath()}, true
}

// Existing looks up every valid time of r, in request order, omitting misses.
func (i *Index) Existing(model domain.ModelID, plot domain.PlotType, r domain.TimeRange) []Entry {
	out := make([]Entry, 0, len(r.ValidTime))
	for _, v := range r.ValidTime {
		key := domain.CacheKey{Model: model, Plot: plot, Base: r.BaseTime, Valid: v}
		if e, ok := i.Lookup(key); ok {
			out = append(out, e)
		}
	}
	return out
}

// List returns the sorted image file names in a model's plot directory that
// start with prefix. A missing directory yields an empty list.
func (i *Index) List(model domain.ModelID, plot domain.PlotType, prefix string) []string {
	dir := filepath.Join(i.root, string(model), plot.Dir())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "_image.webp") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sampleOrder is the plot order used when picking a sample image.
var sampleOrder = []domain.PlotType{domain.PlotSeaLevel, domain.PlotGeo, domain.PlotRain, domain.PlotTempWind}

// Sample returns the relative path of the first forecast image found for
// model, checking plot directories in a fixed order.
func (i *Index) Sample(model domain.ModelID) (string, bool) {
	for _, plot := range sampleOrder {
		for _, name := range i.List(model, plot, "") {
			if strings.HasPrefix(name, "gt_") {
				continue
			}
			return strings.Join([]string{string(model), plot.Dir(), name}, "/"), true
		}
	}
	return "", false
}

// EnsureLayout creates the plot directories of every model.
func (i *Index) EnsureLayout(models []domain.ModelID) error {
	for _, m := range models {
		for _, p := range domain.AllPlots {
			dir := filepath.Join(i.root, string(m), p.Dir())
			//nolint:gosec // G301: Served directory must be world-readable.
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}
	return nil
}

// readable reports whether p is a regular file that can be opened.
func readable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
