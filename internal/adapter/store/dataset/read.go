package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
)

// readHyperslab reads the block [start, start+count) of v as float64.
// Supports DOUBLE, FLOAT, INT, SHORT and INT64 variables.
func readHyperslab(v netcdf.Var, start, count []uint64) ([]float64, error) {
	varType, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get variable type: %w", err)
	}

	total := 1
	for _, c := range count {
		total *= int(c) //nolint:gosec // G115: Dimension lengths fit in int.
	}

	out := make([]float64, total)
	switch varType {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64Slice(out, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float64 slab: %w", err)
		}
	case netcdf.FLOAT:
		buf := make([]float32, total)
		if err := v.ReadFloat32Slice(buf, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float32 slab: %w", err)
		}
		for i, val := range buf {
			out[i] = float64(val)
		}
	case netcdf.INT:
		buf := make([]int32, total)
		if err := v.ReadInt32Slice(buf, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int32 slab: %w", err)
		}
		for i, val := range buf {
			out[i] = float64(val)
		}
	case netcdf.SHORT:
		buf := make([]int16, total)
		if err := v.ReadInt16Slice(buf, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int16 slab: %w", err)
		}
		for i, val := range buf {
			out[i] = float64(val)
		}
	case netcdf.INT64:
		buf := make([]int64, total)
		if err := v.ReadInt64Slice(buf, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int64 slab: %w", err)
		}
		for i, val := range buf {
			out[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("unsupported data type: %v (expected DOUBLE, FLOAT, INT, SHORT or INT64)", varType)
	}
	return out, nil
}

// read1D reads a whole 1D variable as float64.
func read1D(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	n, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readHyperslab(v, []uint64{0}, []uint64{n})
}

// packing holds the CF decoding attributes of a variable.
type packing struct {
	scale   float64
	offset  float64
	fill    float64
	hasFill bool
}

func readPacking(v netcdf.Var) packing {
	p := packing{scale: 1}
	if s, ok := floatAttr(v, "scale_factor"); ok && s != 0 {
		p.scale = s
	}
	if o, ok := floatAttr(v, "add_offset"); ok {
		p.offset = o
	}
	for _, name := range []string{"_FillValue", "missing_value"} {
		if f, ok := floatAttr(v, name); ok {
			p.fill, p.hasFill = f, true
			break
		}
	}
	return p
}

// decode applies fill masking and scale/offset in place.
func (p packing) decode(values []float64) {
	for i, raw := range values {
		if p.hasFill && (raw == p.fill || (math.IsNaN(p.fill) && math.IsNaN(raw))) {
			values[i] = math.NaN()
			continue
		}
		values[i] = raw*p.scale + p.offset
	}
}

// floatAttr reads a numeric attribute as float64.
func floatAttr(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	if n, err := a.Len(); err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, 1)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, 1)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, 1)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, 1)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

// textAttr reads a CHAR attribute such as "units".
func textAttr(v netcdf.Var, name string) string {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

// dimNames returns the names and lengths of v's dimensions.
func dimNames(v netcdf.Var) ([]string, []uint64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	names := make([]string, len(dims))
	lens := make([]uint64, len(dims))
	for i, d := range dims {
		if names[i], err = d.Name(); err != nil {
			return nil, nil, err
		}
		if lens[i], err = d.Len(); err != nil {
			return nil, nil, err
		}
	}
	return names, lens, nil
}

// findVar returns the first variable that exists among names.
func findVar(nc netcdf.Dataset, names ...string) (netcdf.Var, string, bool) {
	for _, name := range names {
		if v, err := nc.Var(name); err == nil {
			return v, name, true
		}
	}
	return netcdf.Var{}, "", false
}
