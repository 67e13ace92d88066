package dataset

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.ngs.io/weather-maps-api/internal/domain"
)

var base0 = time.Date(2022, 5, 5, 0, 0, 0, 0, time.UTC)

// createForecastStore writes a small forecast store: 3 base times 12h apart,
// leads 0..30h every 6h, two levels, a 2×3 grid. Cell values encode their
// indices so selections can be checked exactly.
func createForecastStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forecast.nc")
	layout := Layout{
		Times:  []time.Time{base0, base0.Add(12 * time.Hour), base0.Add(24 * time.Hour)},
		Leads:  []time.Duration{0, 6 * time.Hour, 12 * time.Hour, 18 * time.Hour, 24 * time.Hour, 30 * time.Hour},
		Levels: []float64{850, 500},
		Lat:    []float64{50, 40},
		Lon:    []float64{0, 10, 20},
		Variables: []VariableSpec{
			{
				Name:  "t2m",
				Units: "K",
				Value: func(ti, li, _, r, c int) float64 {
					return float64(1000*ti + 100*li + 10*r + c)
				},
			},
			{
				Name:    "z",
				Units:   "m**2 s**-2",
				Leveled: true,
				Value: func(_, _, lv, _, _ int) float64 {
					if lv == 1 {
						return 49066.65
					}
					return 14000
				},
			},
		},
	}
	if err := WriteStore(path, layout); err != nil {
		t.Fatalf("WriteStore: %v", err)
	}
	return path
}

func openForecast(t *testing.T) *Dataset {
	t.Helper()
	ds, err := Open(createForecastStore(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestOpenReadsAxes(t *testing.T) {
	ds := openForecast(t)

	if got := len(ds.Times()); got != 3 {
		t.Fatalf("times = %d, want 3", got)
	}
	if !ds.Times()[1].Equal(base0.Add(12 * time.Hour)) {
		t.Errorf("times[1] = %v", ds.Times()[1])
	}
	if got := ds.LeadTimes(); len(got) != 6 || got[5] != 30*time.Hour {
		t.Errorf("lead times = %v", got)
	}
}

func TestSelectNearestLeadTime(t *testing.T) {
	ds := openForecast(t)
	arr, err := ds.Variable(context.Background(), "t2m")
	if err != nil {
		t.Fatalf("Variable: %v", err)
	}

	// Base one hour off the second sample, lead one hour past 12h.
	lead := 13 * time.Hour
	f, err := arr.Select(context.Background(), domain.Selection{
		Time: base0.Add(13 * time.Hour),
		Lead: &lead,
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if f.Rows != 2 || f.Cols != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", f.Rows, f.Cols)
	}
	if f.Lead != 12*time.Hour {
		t.Errorf("selected lead = %v, want 12h", f.Lead)
	}
	if !f.Time.Equal(base0.Add(12 * time.Hour)) {
		t.Errorf("selected time = %v", f.Time)
	}
	// ti=1, li=2, r=1, c=2 -> 1000 + 200 + 10 + 2.
	if got := f.At(1, 2); got != 1212 {
		t.Errorf("value = %v, want 1212", got)
	}
	if len(f.Lat) != 2 || len(f.Lon) != 3 {
		t.Errorf("coordinates not attached: lat=%v lon=%v", f.Lat, f.Lon)
	}
}

func TestSelectLevel(t *testing.T) {
	ds := openForecast(t)
	arr, err := ds.Variable(context.Background(), "z")
	if err != nil {
		t.Fatalf("Variable: %v", err)
	}
	levels, ok := arr.Levels()
	if !ok || len(levels) != 2 {
		t.Fatalf("Levels = %v, %v", levels, ok)
	}

	level := domain.GeopotentialLevel
	lead := 6 * time.Hour
	f, err := arr.Select(context.Background(), domain.Selection{Time: base0, Lead: &lead, Level: &level})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if f.Level == nil || *f.Level != 500 {
		t.Fatalf("selected level = %v, want 500", f.Level)
	}
	f.GeopotentialToHeight()
	if math.Abs(f.At(0, 0)-49066.65/domain.StandardGravity) > 0.01 {
		t.Errorf("height = %.4f, want %.4f", f.At(0, 0), 49066.65/domain.StandardGravity)
	}

	// Without a requested level the first one is used.
	f, err = arr.Select(context.Background(), domain.Selection{Time: base0, Lead: &lead})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if f.At(0, 0) != 14000 {
		t.Errorf("default level value = %v, want 14000", f.At(0, 0))
	}
}

func TestVariableNotFound(t *testing.T) {
	ds := openForecast(t)
	_, err := ds.Variable(context.Background(), "2m_temperature")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubset(t *testing.T) {
	ds := openForecast(t)
	q := domain.SubsetQuery{
		Start:     base0.Add(-12 * time.Hour),
		End:       base0.Add(36 * time.Hour),
		Frequency: 12 * time.Hour,
		Variables: []string{"t2m"},
		LeadTimes: []time.Duration{6 * time.Hour, 36 * time.Hour},
	}
	sub, err := ds.Subset(context.Background(), q)
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}
	if len(sub.Times) != 3 || !sub.Times[0].Equal(base0) {
		t.Errorf("times = %v", sub.Times)
	}
	if len(sub.LeadTimes) != 1 || sub.LeadTimes[0] != 6*time.Hour {
		t.Errorf("lead times = %v", sub.LeadTimes)
	}

	q.Variables = []string{"msl"}
	if _, err := ds.Subset(context.Background(), q); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found for missing variable, got %v", err)
	}
}

func TestGroundTruthLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gt.nc")
	err := WriteStore(path, Layout{
		Times:    []time.Time{base0, base0.Add(6 * time.Hour)},
		Levels:   []float64{500},
		LevelDim: "pressure_level",
		Lat:      []float64{1, 0},
		Lon:      []float64{0, 1},
		Variables: []VariableSpec{{
			Name:    "z",
			Leveled: true,
			Value:   func(ti, _, _, _, _ int) float64 { return float64(ti) },
		}},
	})
	if err != nil {
		t.Fatalf("WriteStore: %v", err)
	}

	ds, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = ds.Close() }()

	if len(ds.LeadTimes()) != 0 {
		t.Errorf("ground truth should have no lead axis")
	}
	arr, err := ds.Variable(context.Background(), "z")
	if err != nil {
		t.Fatalf("Variable: %v", err)
	}
	if _, ok := arr.Levels(); !ok {
		t.Errorf("pressure_level should be recognised as a level axis")
	}
	lead := 6 * time.Hour
	f, err := arr.Select(context.Background(), domain.Selection{Time: base0.Add(5 * time.Hour), Lead: &lead})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if f.At(0, 0) != 1 {
		t.Errorf("value = %v, want 1 (nearest time index)", f.At(0, 0))
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.nc")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPackingDecode(t *testing.T) {
	p := packing{scale: 0.5, offset: 100, fill: -32767, hasFill: true}
	vals := []float64{10, -32767}
	p.decode(vals)
	if vals[0] != 105 {
		t.Errorf("decoded = %v, want 105", vals[0])
	}
	if !math.IsNaN(vals[1]) {
		t.Errorf("fill value should decode to NaN, got %v", vals[1])
	}
}
