package domain

import (
	"math"
	"time"
)

// StandardGravity converts geopotential (m²/s²) to geopotential height (m).
const StandardGravity = 9.80665

// GeopotentialLevel is the pressure level (hPa) drawn on geopotential maps.
const GeopotentialLevel = 500.0

// Field is a 2D slice of a gridded variable, stored row-major.
// Missing values are NaN.
type Field struct {
	Name   string
	Units  string
	Rows   int
	Cols   int
	Values []float64

	// Lat and Lon are the 1D coordinates of the rows and columns when the
	// store provides them.
	Lat []float64
	Lon []float64

	// Time is the selected sample time, Lead the selected lead time.
	Time time.Time
	Lead time.Duration

	// Level is set when a vertical level was selected.
	Level *float64
}

// At returns the value at row r, column c.
func (f *Field) At(r, c int) float64 {
	return f.Values[r*f.Cols+c]
}

// Apply maps fn over every non-NaN value in place.
func (f *Field) Apply(fn func(float64) float64) {
	for i, v := range f.Values {
		if !math.IsNaN(v) {
			f.Values[i] = fn(v)
		}
	}
}

// Scale multiplies every value by k.
func (f *Field) Scale(k float64) {
	f.Apply(func(v float64) float64 { return v * k })
}

// KelvinToCelsius converts the field in place.
func (f *Field) KelvinToCelsius() {
	f.Apply(func(v float64) float64 { return v - 273.15 })
	f.Units = "degC"
}

// GeopotentialToHeight divides by standard gravity in place.
func (f *Field) GeopotentialToHeight() {
	f.Scale(1 / StandardGravity)
	f.Units = "m"
}

// Selection picks one 2D slice out of a variable by nearest-neighbour
// matching on each axis. Lead is ignored by stores without a lead-time axis,
// and Level by variables without a vertical axis.
type Selection struct {
	Time  time.Time
	Lead  *time.Duration
	Level *float64
}

// SubsetQuery describes the time window used by the discovery endpoints.
type SubsetQuery struct {
	Start     time.Time
	End       time.Time
	Frequency time.Duration
	Variables []string
	LeadTimes []time.Duration
}

// DateRange returns Start..End inclusive at Frequency. An inverted window is
// empty. Without a positive Frequency only a single-instant window has a
// time.
func (q SubsetQuery) DateRange() []time.Time {
	if q.End.Before(q.Start) {
		return nil
	}
	if q.Frequency <= 0 {
		if q.Start.Equal(q.End) {
			return []time.Time{q.Start}
		}
		return nil
	}
	var out []time.Time
	for t := q.Start; !t.After(q.End); t = t.Add(q.Frequency) {
		out = append(out, t)
	}
	return out
}

// Subset is the result of a SubsetQuery: the requested times and lead times
// that exist in the store.
type Subset struct {
	Times     []time.Time
	LeadTimes []time.Duration
	Variables []string
}

// DefaultLeadTimes are the forecast steps published by the service (6h to 30h).
func DefaultLeadTimes() []time.Duration {
	leads := make([]time.Duration, 0, 5)
	for h := 6; h <= 30; h += 6 {
		leads = append(leads, time.Duration(h)*time.Hour)
	}
	return leads
}
