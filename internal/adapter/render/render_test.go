package render

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	xwebp "golang.org/x/image/webp"

	"go.ngs.io/weather-maps-api/internal/domain"
)

func gridField(name string, rows, cols int, fn func(r, c int) float64) *domain.Field {
	f := &domain.Field{Name: name, Rows: rows, Cols: cols, Values: make([]float64, rows*cols)}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			f.Values[r*cols+c] = fn(r, c)
		}
	}
	return f
}

func testJob(t *testing.T, name string) Job {
	t.Helper()
	base := time.Date(2022, 5, 5, 0, 0, 0, 0, time.UTC)
	return Job{
		Path:    filepath.Join(t.TempDir(), "cerrora", "geopotential", name),
		Title:   "cerrora Geopotential height 500hPa",
		Base:    base,
		Valid:   base.Add(6 * time.Hour),
		Reverse: true,
	}
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // G304: Test path.
	if err != nil {
		t.Fatalf("open rendered image: %v", err)
	}
	defer func() { _ = f.Close() }()
	img, err := xwebp.Decode(f)
	if err != nil {
		t.Fatalf("decode webp: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCreateGeoPlotWritesWebP(t *testing.T) {
	r := NewRaster(Options{Width: 120, Quality: 70}, zaptest.NewLogger(t))
	job := testJob(t, "1_2_image.webp")
	geo := gridField("z", 10, 20, func(r, c int) float64 { return 4800 + float64(50*r+c) })

	path, err := r.CreateGeoPlot(context.Background(), job, geo)
	if err != nil {
		t.Fatalf("CreateGeoPlot: %v", err)
	}
	if path != job.Path {
		t.Errorf("path = %q, want %q", path, job.Path)
	}

	w, h := decodeSize(t, path)
	if w != 120 {
		t.Errorf("width = %d, want 120", w)
	}
	// 10x20 grid at width 120 gives a 60px map, raised to the 64px minimum.
	if want := titleHeight + minMapHeight + colorbarHeight; h != want {
		t.Errorf("height = %d, want %d", h, want)
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestCreateTempWindPlot(t *testing.T) {
	r := NewRaster(Options{Width: 200}, zaptest.NewLogger(t))
	job := testJob(t, "temp.webp")
	temp := gridField("t2m", 40, 40, func(r, c int) float64 { return float64(r - c) })
	u := gridField("10u", 40, 40, func(int, int) float64 { return 5 })
	v := gridField("10v", 40, 40, func(r, _ int) float64 { return float64(r%3 - 1) })
	v.Values[0] = math.NaN()

	path, err := r.CreateTempWindPlot(context.Background(), job, temp, u, v)
	if err != nil {
		t.Fatalf("CreateTempWindPlot: %v", err)
	}
	if w, _ := decodeSize(t, path); w != 200 {
		t.Errorf("width = %d, want 200", w)
	}
}

func TestCreateRainAndSeaLevelDoNotMutateInput(t *testing.T) {
	r := NewRaster(Options{Width: 64}, zaptest.NewLogger(t))
	slp := gridField("msl", 4, 4, func(int, int) float64 { return 101325 })
	if _, err := r.CreateSeaLevelPlot(context.Background(), testJob(t, "slp.webp"), slp); err != nil {
		t.Fatalf("CreateSeaLevelPlot: %v", err)
	}
	if slp.Values[0] != 101325 {
		t.Errorf("input field was modified: %v", slp.Values[0])
	}

	rain := gridField("tp", 4, 4, func(int, int) float64 { return 12 })
	if _, err := r.CreateRainPlot(context.Background(), testJob(t, "rain.webp"), rain); err != nil {
		t.Fatalf("CreateRainPlot: %v", err)
	}
	if rain.Values[0] != 12 {
		t.Errorf("input field was modified: %v", rain.Values[0])
	}
}

func TestShapeMismatchWritesNothing(t *testing.T) {
	r := NewRaster(Options{Width: 64}, zaptest.NewLogger(t))
	job := testJob(t, "bad.webp")
	temp := gridField("t2m", 4, 4, func(int, int) float64 { return 0 })
	u := gridField("10u", 4, 5, func(int, int) float64 { return 0 })

	if _, err := r.CreateTempWindPlot(context.Background(), job, temp, u, u); err == nil {
		t.Fatal("expected shape error")
	}
	if _, err := r.CreateGeoPlot(context.Background(), job, nil); err == nil {
		t.Fatal("expected error for nil field")
	}
	if _, err := os.Stat(job.Path); !os.IsNotExist(err) {
		t.Errorf("no file should be written, stat err = %v", err)
	}
}

func TestRenderWaitsForExclusiveAccess(t *testing.T) {
	r := NewRaster(Options{Width: 64}, zaptest.NewLogger(t))
	job := testJob(t, "locked.webp")
	geo := gridField("z", 4, 4, func(int, int) float64 { return 5000 })

	// Hold the render token as if another render were in progress.
	r.token <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.CreateGeoPlot(ctx, job, geo); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while the token is held, got %v", err)
	}

	r.release()
	if _, err := r.CreateGeoPlot(context.Background(), job, geo); err != nil {
		t.Fatalf("render after release: %v", err)
	}
}

func TestUnsupportedRenderer(t *testing.T) {
	u := Unsupported{Model: domain.ModelExperimental}
	if Supports(u, domain.PlotGeo) {
		t.Errorf("Unsupported must not support any plot")
	}
	if !Supports(NewRaster(Options{}, zaptest.NewLogger(t)), domain.PlotGeo) {
		t.Errorf("Raster supports every plot")
	}

	_, err := u.CreateSeaLevelPlot(context.Background(), Job{}, nil)
	if !errors.Is(err, domain.ErrNotSupported) {
		t.Errorf("expected not supported, got %v", err)
	}
	if domain.CodeOf(err) != domain.CodeNotSupported {
		t.Errorf("code = %v", domain.CodeOf(err))
	}
}

func TestFlipRows(t *testing.T) {
	got := flipRows([]float64{1, 2, 3, 4, 5, 6}, 3, 2)
	want := []float64{5, 6, 3, 4, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("flipRows = %v, want %v", got, want)
		}
	}
}

func TestArrowStride(t *testing.T) {
	tests := []struct{ rows, cols, want int }{
		{1069, 1069, 16},
		{40, 40, 5},
		{4, 4, 1},
	}
	for _, tt := range tests {
		if got := arrowStride(tt.rows, tt.cols); got != tt.want {
			t.Errorf("arrowStride(%d, %d) = %d, want %d", tt.rows, tt.cols, got, tt.want)
		}
	}
}
