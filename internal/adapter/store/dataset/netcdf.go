// Package dataset provides forecast and ground-truth stores backed by NetCDF
// files laid out as time × prediction_timedelta × [level] × y × x.
package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/weather-maps-api/internal/adapter/interp"
	"go.ngs.io/weather-maps-api/internal/adapter/store"
	"go.ngs.io/weather-maps-api/internal/domain"
)

// Axis names recognised on data variables.
var (
	timeDims  = []string{"time", "valid_time", "init_time"}
	leadDims  = []string{"prediction_timedelta", "lead_time", "step"}
	levelDims = []string{"level", "pressure_level", "isobaricInhPa"}
	latNames  = []string{"latitude", "lat", "y"}
	lonNames  = []string{"longitude", "lon", "x"}
)

type axisRole int

const (
	roleOther axisRole = iota
	roleTime
	roleLead
	roleLevel
	roleSpatial
)

// Dataset is an open NetCDF store. It is safe for concurrent use: the NetCDF
// C library is not, so every read holds mu.
type Dataset struct {
	path string

	mu sync.Mutex
	nc netcdf.Dataset

	times    []time.Time
	timeAxis []float64 // Unix seconds, for nearest-neighbour search.
	leads    []time.Duration
	leadAxis []float64 // Seconds.
	lat, lon []float64
}

var _ store.Source = (*Dataset)(nil)

// Open opens path and reads its coordinate axes.
func Open(path string) (*Dataset, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}

	ds := &Dataset{path: path, nc: nc}
	if err := ds.readAxes(); err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

func (d *Dataset) readAxes() error {
	tv, name, ok := findVar(d.nc, timeDims...)
	if !ok {
		return fmt.Errorf("time coordinate not found (tried: %v)", timeDims)
	}
	raw, err := read1D(tv)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if d.times, err = decodeTimes(raw, textAttr(tv, "units")); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	d.timeAxis = make([]float64, len(d.times))
	for i, t := range d.times {
		d.timeAxis[i] = float64(t.Unix())
	}

	// Ground-truth stores have no lead-time axis.
	if lv, name, ok := findVar(d.nc, leadDims...); ok {
		raw, err := read1D(lv)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if d.leads, err = decodeLeads(raw, textAttr(lv, "units")); err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		d.leadAxis = make([]float64, len(d.leads))
		for i, l := range d.leads {
			d.leadAxis[i] = l.Seconds()
		}
	}

	// Coordinates are informational; curvilinear grids simply omit them.
	if v, _, ok := findVar(d.nc, latNames...); ok {
		d.lat, _ = read1D(v)
	}
	if v, _, ok := findVar(d.nc, lonNames...); ok {
		d.lon, _ = read1D(v)
	}
	return nil
}

// Path returns the file the dataset was opened from.
func (d *Dataset) Path() string {
	return d.path
}

// Times returns the time axis.
func (d *Dataset) Times() []time.Time {
	return d.times
}

// LeadTimes returns the lead-time axis, empty for ground-truth stores.
func (d *Dataset) LeadTimes() []time.Duration {
	return d.leads
}

// TimeAxis implements store.Source.
func (d *Dataset) TimeAxis(_ context.Context) ([]time.Time, error) {
	return d.times, nil
}

// Close closes the underlying file.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nc.Close()
}

// Variable implements store.Source.
func (d *Dataset) Variable(_ context.Context, name string) (store.Array, error) {
	a, err := d.variable(name)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d *Dataset) variable(name string) (*Array, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.nc.Var(name)
	if err != nil {
		return nil, domain.WrapError(domain.CodeNotFound, err, "variable %q not found in %s", name, d.path)
	}
	names, lens, err := dimNames(v)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("variable %q has %d dimensions, expected at least 2", name, len(names))
	}

	a := &Array{
		ds:      d,
		name:    name,
		v:       v,
		dims:    names,
		lens:    lens,
		roles:   make([]axisRole, len(names)),
		units:   textAttr(v, "units"),
		packing: readPacking(v),
	}
	for i, dn := range names {
		switch {
		case i >= len(names)-2:
			a.roles[i] = roleSpatial
		case contains(timeDims, dn):
			a.roles[i] = roleTime
		case contains(leadDims, dn):
			a.roles[i] = roleLead
		case contains(levelDims, dn):
			a.roles[i] = roleLevel
			if lv, err := d.nc.Var(dn); err == nil {
				a.levels, _ = read1D(lv)
			}
		}
	}
	return a, nil
}

// Subset implements store.Source. Requested times and lead times that are
// not on the store's axes are dropped.
func (d *Dataset) Subset(_ context.Context, q domain.SubsetQuery) (*domain.Subset, error) {
	d.mu.Lock()
	for _, name := range q.Variables {
		if _, err := d.nc.Var(name); err != nil {
			d.mu.Unlock()
			return nil, domain.WrapError(domain.CodeNotFound, err, "variable %q not found in %s", name, d.path)
		}
	}
	d.mu.Unlock()

	present := make(map[int64]bool, len(d.times))
	for _, t := range d.times {
		present[t.Unix()] = true
	}
	out := &domain.Subset{Variables: q.Variables}
	for _, t := range q.DateRange() {
		if present[t.Unix()] {
			out.Times = append(out.Times, t.UTC())
		}
	}

	leadSet := make(map[time.Duration]bool, len(d.leads))
	for _, l := range d.leads {
		leadSet[l] = true
	}
	for _, l := range q.LeadTimes {
		if leadSet[l] {
			out.LeadTimes = append(out.LeadTimes, l)
		}
	}
	return out, nil
}

// Array is a variable handle. Data is read one 2D slice at a time.
type Array struct {
	ds      *Dataset
	name    string
	v       netcdf.Var
	dims    []string
	lens    []uint64
	roles   []axisRole
	levels  []float64
	units   string
	packing packing
}

var _ store.Array = (*Array)(nil)

// Levels implements store.Array.
func (a *Array) Levels() ([]float64, bool) {
	for _, r := range a.roles {
		if r == roleLevel {
			return a.levels, true
		}
	}
	return nil, false
}

// Select implements store.Array. Each axis is matched to its nearest sample.
// A variable with a level axis and no requested level uses the first level.
func (a *Array) Select(ctx context.Context, sel domain.Selection) (*domain.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	field := &domain.Field{Name: a.name, Units: a.units}
	start := make([]uint64, len(a.dims))
	count := make([]uint64, len(a.dims))
	var spatial []int

	for i, role := range a.roles {
		count[i] = 1
		switch role {
		case roleTime:
			if len(a.ds.timeAxis) == 0 {
				return nil, fmt.Errorf("variable %q: empty time axis", a.name)
			}
			idx := interp.NearestIndex(a.ds.timeAxis, float64(sel.Time.Unix()))
			start[i] = uint64(idx) //nolint:gosec // G115: Index is non-negative.
			field.Time = a.ds.times[idx]
		case roleLead:
			if sel.Lead != nil && len(a.ds.leadAxis) > 0 {
				idx := interp.NearestIndex(a.ds.leadAxis, sel.Lead.Seconds())
				start[i] = uint64(idx) //nolint:gosec // G115: Index is non-negative.
				field.Lead = a.ds.leads[idx]
			}
		case roleLevel:
			if len(a.levels) > 0 {
				idx := 0
				if sel.Level != nil {
					idx = interp.NearestIndex(a.levels, *sel.Level)
				}
				start[i] = uint64(idx) //nolint:gosec // G115: Index is non-negative.
				level := a.levels[idx]
				field.Level = &level
			}
		case roleSpatial:
			count[i] = a.lens[i]
			spatial = append(spatial, i)
		case roleOther:
			// Unknown leading axes (e.g. a singleton batch) use index 0.
		}
	}
	field.Rows = int(a.lens[spatial[0]]) //nolint:gosec // G115: Dimension lengths fit in int.
	field.Cols = int(a.lens[spatial[1]]) //nolint:gosec // G115: Dimension lengths fit in int.

	a.ds.mu.Lock()
	values, err := readHyperslab(a.v, start, count)
	a.ds.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", a.name, err)
	}
	a.packing.decode(values)
	field.Values = values

	if len(a.ds.lat) == field.Rows && len(a.ds.lon) == field.Cols {
		field.Lat = a.ds.lat
		field.Lon = a.ds.lon
	}
	return field, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
