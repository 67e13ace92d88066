// Package main writes synthetic forecast and ground-truth NetCDF stores for
// local development.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/adapter/store/dataset"
	"go.ngs.io/weather-maps-api/internal/domain"
	"go.ngs.io/weather-maps-api/internal/logging"
)

const g = 9.80665

// Grid defines the geographic bounds and resolution.
type Grid struct {
	LatMin     float64
	LatMax     float64
	LonMin     float64
	LonMax     float64
	Resolution float64 // degrees
}

// axis returns evenly spaced values from lo to hi inclusive.
func axis(lo, hi, step float64) []float64 {
	n := int(math.Round((hi-lo)/step)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func reversed(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[len(values)-1-i] = v
	}
	return out
}

func main() {
	outDir := flag.String("out", "./data", "Output directory for NetCDF stores")
	start := flag.String("start", "", "First base time, RFC3339 (default: 00 UTC seven days ago)")
	days := flag.Int("days", 7, "Number of days of 12-hourly base times")
	globalRes := flag.Float64("graphcast-resolution", 2.0, "GraphCast grid resolution in degrees")
	europeRes := flag.Float64("cerrora-resolution", 0.5, "Cerrora grid resolution in degrees")
	flag.Parse()

	log, err := logging.New("info", "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *days <= 0 {
		log.Fatal("-days must be positive", zap.Int("days", *days))
	}

	first := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -*days)
	if *start != "" {
		if first, err = time.Parse(time.RFC3339, *start); err != nil {
			log.Fatal("invalid -start", zap.Error(err))
		}
	}

	// Create output directory.
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal("failed to create output directory", zap.Error(err))
	}

	bases := make([]time.Time, 0, *days*2)
	for i := 0; i < *days*2; i++ {
		bases = append(bases, first.Add(time.Duration(i)*12*time.Hour))
	}
	leads := domain.DefaultLeadTimes()

	global := Grid{LatMin: -90, LatMax: 90, LonMin: 0, LonMax: 358, Resolution: *globalRes}
	europe := Grid{LatMin: 30, LatMax: 72, LonMin: -30, LonMax: 45, Resolution: *europeRes}

	stores := []struct {
		name   string
		layout dataset.Layout
	}{
		{"graphcast.nc", forecastLayout(global, bases, leads, domain.GraphcastVariables, "level")},
		{"cerrora.nc", forecastLayout(europe, bases, leads, domain.CerroraVariables, "isobaricInhPa")},
		{"cerrora_gt.nc", truthLayout(europe, bases, leads, domain.CerroraVariables)},
	}
	for _, s := range stores {
		path := filepath.Join(*outDir, s.name)
		started := time.Now()
		if err := dataset.WriteStore(path, s.layout); err != nil {
			log.Fatal("failed to write store", zap.String("path", path), zap.Error(err))
		}
		info, err := os.Stat(path)
		if err != nil {
			log.Fatal("failed to stat store", zap.String("path", path), zap.Error(err))
		}
		log.Info("store written",
			zap.String("path", path),
			zap.Int("times", len(s.layout.Times)),
			zap.Int("lat", len(s.layout.Lat)),
			zap.Int("lon", len(s.layout.Lon)),
			zap.Float64("size_mb", float64(info.Size())/1024/1024),
			zap.Duration("elapsed", time.Since(started)))
	}

	log.Info("generation complete",
		zap.String("dir", *outDir),
		zap.Time("first_base", first),
		zap.Time("last_base", bases[len(bases)-1]))
}

// forecastLayout stores latitude ascending; forecasts are drawn with their
// rows reversed.
func forecastLayout(grid Grid, bases []time.Time, leads []time.Duration, vars domain.VariableSet, levelDim string) dataset.Layout {
	lat := axis(grid.LatMin, grid.LatMax, grid.Resolution)
	lon := axis(grid.LonMin, grid.LonMax, grid.Resolution)
	validAt := func(t, lead int) time.Time { return bases[t].Add(leads[lead]) }
	return dataset.Layout{
		Times:     bases,
		Leads:     leads,
		Levels:    []float64{500, 850},
		LevelDim:  levelDim,
		Lat:       lat,
		Lon:       lon,
		Variables: weatherVariables(vars, lat, lon, validAt),
	}
}

// truthLayout stores latitude descending at 6-hourly analysis times covering
// every forecast valid time.
func truthLayout(grid Grid, bases []time.Time, leads []time.Duration, vars domain.VariableSet) dataset.Layout {
	lat := reversed(axis(grid.LatMin, grid.LatMax, grid.Resolution))
	lon := axis(grid.LonMin, grid.LonMax, grid.Resolution)
	last := bases[len(bases)-1].Add(leads[len(leads)-1])
	var times []time.Time
	for t := bases[0]; !t.After(last); t = t.Add(6 * time.Hour) {
		times = append(times, t)
	}
	validAt := func(t, _ int) time.Time { return times[t] }
	return dataset.Layout{
		Times:     times,
		Levels:    []float64{500, 850},
		LevelDim:  "isobaricInhPa",
		Lat:       lat,
		Lon:       lon,
		Variables: weatherVariables(vars, lat, lon, validAt),
	}
}

// weatherVariables returns plausible smooth fields that drift eastward with
// the valid time so consecutive frames differ.
func weatherVariables(vars domain.VariableSet, lat, lon []float64, validAt func(t, lead int) time.Time) []dataset.VariableSpec {
	phase := func(t, lead, col int) float64 {
		hours := float64(validAt(t, lead).Unix()) / 3600
		return (lon[col] + hours*2) * math.Pi / 180
	}
	rad := func(row int) float64 { return lat[row] * math.Pi / 180 }

	return []dataset.VariableSpec{
		{
			Name:  vars.Temperature,
			Units: "K",
			Value: func(t, lead, _, row, col int) float64 {
				return 273.15 + 30*math.Cos(rad(row)) - 10 + 4*math.Sin(3*phase(t, lead, col))
			},
		},
		{
			Name:  vars.WindU,
			Units: "m s**-1",
			Value: func(t, lead, _, row, col int) float64 {
				return 12 * math.Sin(2*rad(row)) * math.Cos(2*phase(t, lead, col))
			},
		},
		{
			Name:  vars.WindV,
			Units: "m s**-1",
			Value: func(t, lead, _, row, col int) float64 {
				return 8 * math.Cos(rad(row)) * math.Sin(2*phase(t, lead, col))
			},
		},
		{
			Name:    vars.Geopotential,
			Units:   "m**2 s**-2",
			Leveled: true,
			Value: func(t, lead, level, row, col int) float64 {
				height := 5500.0
				if level == 1 {
					height = 1450
				}
				return g * (height + 250*math.Cos(rad(row)) + 80*math.Sin(4*phase(t, lead, col)))
			},
		},
		{
			Name:  vars.Precipitation,
			Units: "m",
			Value: func(t, lead, _, row, col int) float64 {
				return math.Max(0, 0.004*math.Sin(5*phase(t, lead, col))*math.Cos(3*rad(row)))
			},
		},
		{
			Name:  vars.SeaLevelPressure,
			Units: "Pa",
			Value: func(t, lead, _, row, col int) float64 {
				return 101325 + 1800*math.Sin(3*phase(t, lead, col))*math.Cos(2*rad(row))
			},
		},
	}
}
