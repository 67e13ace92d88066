package cache

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"go.ngs.io/weather-maps-api/internal/domain"
)

func writeImage(t *testing.T, idx *Index, key domain.CacheKey) string {
	t.Helper()
	p := idx.Path(key)
	//nolint:gosec // G301: Standard test directory permissions.
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	//nolint:gosec // G306: Test fixture.
	if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLookupHitAndMiss(t *testing.T) {
	idx := NewIndex(t.TempDir(), "http://localhost:8080/streaming/")
	key := domain.CacheKey{Model: domain.ModelGraphcast, Plot: domain.PlotGeo, Base: 100, Valid: 200}

	if _, ok := idx.Lookup(key); ok {
		t.Fatalf("expected miss before write")
	}

	path := writeImage(t, idx, key)
	e, ok := idx.Lookup(key)
	if !ok {
		t.Fatalf("expected hit after write")
	}
	if e.Path != path {
		t.Errorf("Path = %q, want %q", e.Path, path)
	}
	if got, want := idx.URL(e.Rel), "http://localhost:8080/streaming/graphcast/geopotential/100_200_image.webp"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestLookupDirectoryIsMiss(t *testing.T) {
	idx := NewIndex(t.TempDir(), "")
	key := domain.CacheKey{Model: domain.ModelCerrora, Plot: domain.PlotRain, Base: 1, Valid: 2}
	//nolint:gosec // G301: Standard test directory permissions.
	if err := os.MkdirAll(idx.Path(key), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, ok := idx.Lookup(key); ok {
		t.Errorf("a directory at the image path must not count as a hit")
	}
}

func TestLookupUnreadableIsMiss(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	idx := NewIndex(t.TempDir(), "")
	key := domain.CacheKey{Model: domain.ModelCerrora, Plot: domain.PlotRain, Base: 1, Valid: 2}
	p := writeImage(t, idx, key)
	if err := os.Chmod(p, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, ok := idx.Lookup(key); ok {
		t.Errorf("unreadable file must be treated as a miss")
	}
}

func TestExistingPreservesOrderAndOmitsMisses(t *testing.T) {
	idx := NewIndex(t.TempDir(), "")
	r := domain.TimeRange{BaseTime: 0, ValidTime: []int64{300, 100, 200, 400}}
	for _, v := range []int64{400, 100, 300} {
		writeImage(t, idx, domain.CacheKey{Model: domain.ModelCerrora, Plot: domain.PlotTempWind, Base: 0, Valid: v})
	}

	got := idx.Existing(domain.ModelCerrora, domain.PlotTempWind, r)
	want := []int64{300, 100, 400}
	if len(got) != len(want) {
		t.Fatalf("Existing returned %d entries, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.Key.Valid != want[i] {
			t.Errorf("entry %d valid = %d, want %d", i, e.Key.Valid, want[i])
		}
	}
}

func TestExistingIgnoresGroundTruthFiles(t *testing.T) {
	idx := NewIndex(t.TempDir(), "")
	writeImage(t, idx, domain.CacheKey{Model: domain.ModelCerrora, Plot: domain.PlotGeo, Base: 0, Valid: 60, GroundTruth: true})
	r := domain.TimeRange{BaseTime: 0, ValidTime: []int64{60}}
	if got := idx.Existing(domain.ModelCerrora, domain.PlotGeo, r); len(got) != 0 {
		t.Errorf("ground-truth image must not satisfy a forecast lookup, got %v", got)
	}
}

func TestListAndSample(t *testing.T) {
	idx := NewIndex(t.TempDir(), "")
	if _, ok := idx.Sample(domain.ModelGraphcast); ok {
		t.Fatalf("empty cache should have no sample")
	}

	writeImage(t, idx, domain.CacheKey{Model: domain.ModelGraphcast, Plot: domain.PlotRain, Base: 10, Valid: 40})
	writeImage(t, idx, domain.CacheKey{Model: domain.ModelGraphcast, Plot: domain.PlotRain, Base: 10, Valid: 20})
	writeImage(t, idx, domain.CacheKey{Model: domain.ModelGraphcast, Plot: domain.PlotRain, Base: 11, Valid: 20})

	names := idx.List(domain.ModelGraphcast, domain.PlotRain, "10_")
	if len(names) != 2 || names[0] != "10_20_image.webp" || names[1] != "10_40_image.webp" {
		t.Errorf("List = %v", names)
	}

	rel, ok := idx.Sample(domain.ModelGraphcast)
	if !ok || rel != "graphcast/rain/10_20_image.webp" {
		t.Errorf("Sample = %q, %v", rel, ok)
	}
}

func TestEnsureLayout(t *testing.T) {
	root := t.TempDir()
	idx := NewIndex(root, "")
	if err := idx.EnsureLayout([]domain.ModelID{domain.ModelCerrora, domain.ModelGraphcast}); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	for _, dir := range []string{"cerrora/tempWind", "cerrora/seaLevelPressure", "graphcast/geopotential", "graphcast/rain"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}
}
