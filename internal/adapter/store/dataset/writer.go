package dataset

import (
	"fmt"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

// TimeUnits is the CF encoding used for time axes written by WriteStore.
const TimeUnits = "seconds since 1970-01-01 00:00:00"

// Layout describes a store to write. A nil Leads slice produces a
// ground-truth layout with no prediction_timedelta axis.
type Layout struct {
	Times     []time.Time
	Leads     []time.Duration
	Levels    []float64
	LevelDim  string // Defaults to "level".
	Lat       []float64
	Lon       []float64
	Variables []VariableSpec
}

// VariableSpec describes one data variable. Value is called for every cell;
// lead and level are -1 when the axis is absent.
type VariableSpec struct {
	Name    string
	Units   string
	Leveled bool
	Value   func(t, lead, level, row, col int) float64
}

// WriteStore creates a NetCDF-4 file at path with the given layout.
func WriteStore(path string, l Layout) error {
	if len(l.Times) == 0 || len(l.Lat) == 0 || len(l.Lon) == 0 {
		return fmt.Errorf("layout needs at least one time, latitude and longitude")
	}
	levelDim := l.LevelDim
	if levelDim == "" {
		levelDim = "level"
	}

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	timeDim, err := ds.AddDim("time", uint64(len(l.Times)))
	if err != nil {
		return err
	}
	var leadDim, levDim netcdf.Dim
	hasLead := l.Leads != nil
	if hasLead {
		if leadDim, err = ds.AddDim("prediction_timedelta", uint64(len(l.Leads))); err != nil {
			return err
		}
	}
	hasLevel := len(l.Levels) > 0
	if hasLevel {
		if levDim, err = ds.AddDim(levelDim, uint64(len(l.Levels))); err != nil {
			return err
		}
	}
	latDim, err := ds.AddDim("latitude", uint64(len(l.Lat)))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("longitude", uint64(len(l.Lon)))
	if err != nil {
		return err
	}

	// Coordinate variables.
	timeVar, err := addVar(ds, "time", netcdf.DOUBLE, TimeUnits, timeDim)
	if err != nil {
		return err
	}
	var leadVar, levVar netcdf.Var
	if hasLead {
		if leadVar, err = addVar(ds, "prediction_timedelta", netcdf.DOUBLE, "hours", leadDim); err != nil {
			return err
		}
	}
	if hasLevel {
		if levVar, err = addVar(ds, levelDim, netcdf.DOUBLE, "hPa", levDim); err != nil {
			return err
		}
	}
	latVar, err := addVar(ds, "latitude", netcdf.DOUBLE, "degrees_north", latDim)
	if err != nil {
		return err
	}
	lonVar, err := addVar(ds, "longitude", netcdf.DOUBLE, "degrees_east", lonDim)
	if err != nil {
		return err
	}

	// Data variables.
	dataVars := make([]netcdf.Var, len(l.Variables))
	for i, spec := range l.Variables {
		dims := []netcdf.Dim{timeDim}
		if hasLead {
			dims = append(dims, leadDim)
		}
		if spec.Leveled && hasLevel {
			dims = append(dims, levDim)
		}
		dims = append(dims, latDim, lonDim)
		if dataVars[i], err = addVar(ds, spec.Name, netcdf.FLOAT, spec.Units, dims...); err != nil {
			return err
		}
	}

	if err := ds.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	times := make([]float64, len(l.Times))
	for i, t := range l.Times {
		times[i] = float64(t.Unix())
	}
	if err := timeVar.WriteFloat64s(times); err != nil {
		return fmt.Errorf("failed to write time: %w", err)
	}
	if hasLead {
		leads := make([]float64, len(l.Leads))
		for i, d := range l.Leads {
			leads[i] = d.Hours()
		}
		if err := leadVar.WriteFloat64s(leads); err != nil {
			return fmt.Errorf("failed to write lead times: %w", err)
		}
	}
	if hasLevel {
		if err := levVar.WriteFloat64s(l.Levels); err != nil {
			return fmt.Errorf("failed to write levels: %w", err)
		}
	}
	if err := latVar.WriteFloat64s(l.Lat); err != nil {
		return fmt.Errorf("failed to write latitude: %w", err)
	}
	if err := lonVar.WriteFloat64s(l.Lon); err != nil {
		return fmt.Errorf("failed to write longitude: %w", err)
	}

	for i, spec := range l.Variables {
		if err := dataVars[i].WriteFloat32s(fill(l, spec, hasLead, hasLevel)); err != nil {
			return fmt.Errorf("failed to write %s: %w", spec.Name, err)
		}
	}
	return nil
}

func addVar(ds netcdf.Dataset, name string, t netcdf.Type, units string, dims ...netcdf.Dim) (netcdf.Var, error) {
	v, err := ds.AddVar(name, t, dims)
	if err != nil {
		return netcdf.Var{}, fmt.Errorf("failed to add %s: %w", name, err)
	}
	if units != "" {
		if err := v.Attr("units").WriteBytes([]byte(units)); err != nil {
			return netcdf.Var{}, fmt.Errorf("failed to set %s units: %w", name, err)
		}
	}
	return v, nil
}

// fill evaluates spec over the layout in storage order.
func fill(l Layout, spec VariableSpec, hasLead, hasLevel bool) []float32 {
	nLead, nLev := 1, 1
	if hasLead {
		nLead = len(l.Leads)
	}
	leveled := spec.Leveled && hasLevel
	if leveled {
		nLev = len(l.Levels)
	}
	out := make([]float32, 0, len(l.Times)*nLead*nLev*len(l.Lat)*len(l.Lon))
	for t := range l.Times {
		for ld := 0; ld < nLead; ld++ {
			lead := -1
			if hasLead {
				lead = ld
			}
			for lv := 0; lv < nLev; lv++ {
				level := -1
				if leveled {
					level = lv
				}
				for r := range l.Lat {
					for c := range l.Lon {
						out = append(out, float32(spec.Value(t, lead, level, r, c)))
					}
				}
			}
		}
	}
	return out
}
