// Package interp holds the grid helpers shared by the dataset store and the
// renderer: nearest-neighbour axis lookup and bilinear resampling.
package interp

import (
	"fmt"
	"math"
)

// GridCell represents a cell in a regular grid with four corner values.
type GridCell struct {
	// Corner coordinates (forming a rectangle).
	X0, X1 float64
	Y0, Y1 float64

	// V00 is the value at (X0, Y0), V10 at (X1, Y0), V01 at (X0, Y1), V11 at (X1, Y1).
	V00, V10, V01, V11 float64
}

// BilinearInterpolate performs bilinear interpolation within a grid cell:
//
//	f(x,y) ≈ (1-t)(1-u)f(x0,y0) + t(1-u)f(x1,y0) + (1-t)u*f(x0,y1) + tu*f(x1,y1)
//
// where t = (x - x0) / (x1 - x0) and u = (y - y0) / (y1 - y0).
func BilinearInterpolate(cell GridCell, x, y float64) (float64, error) {
	if cell.X1 <= cell.X0 {
		return 0, fmt.Errorf("invalid grid cell: X1 must be > X0")
	}
	if cell.Y1 <= cell.Y0 {
		return 0, fmt.Errorf("invalid grid cell: Y1 must be > Y0")
	}

	const epsilon = 1e-9
	if x < cell.X0-epsilon || x > cell.X1+epsilon {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid cell [%.6f, %.6f]", x, cell.X0, cell.X1)
	}
	if y < cell.Y0-epsilon || y > cell.Y1+epsilon {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid cell [%.6f, %.6f]", y, cell.Y0, cell.Y1)
	}

	t := clamp01((x - cell.X0) / (cell.X1 - cell.X0))
	u := clamp01((y - cell.Y0) / (cell.Y1 - cell.Y0))

	return (1-t)*(1-u)*cell.V00 +
		t*(1-u)*cell.V10 +
		(1-t)*u*cell.V01 +
		t*u*cell.V11, nil
}

// NearestIndex returns the index of the axis value closest to target.
// The axis must be sorted, ascending or descending. Ties go to the lower index.
func NearestIndex(axis []float64, target float64) int {
	n := len(axis)
	if n == 0 {
		return 0
	}
	descending := n > 1 && axis[0] > axis[n-1]

	// Binary search for the first element at or past target.
	left, right := 0, n-1
	for left < right {
		mid := (left + right) / 2
		past := axis[mid] >= target
		if descending {
			past = axis[mid] <= target
		}
		if past {
			right = mid
		} else {
			left = mid + 1
		}
	}

	// Check if left-1 is at least as close.
	if left > 0 && math.Abs(axis[left-1]-target) <= math.Abs(axis[left]-target) {
		return left - 1
	}
	return left
}

// Resample maps a row-major rows×cols grid onto a width×height raster by
// bilinear interpolation in index space. Cells with a NaN corner fall back
// to the nearest source value, so missing data stays missing without
// bleeding into its neighbours.
func Resample(values []float64, rows, cols, width, height int) ([]float64, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("empty grid (%dx%d)", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, fmt.Errorf("grid has %d values, expected %d", len(values), rows*cols)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}

	out := make([]float64, width*height)
	for py := 0; py < height; py++ {
		y := scaleCoord(py, height, rows)
		r0 := int(math.Floor(y))
		r1 := minInt(r0+1, rows-1)
		for px := 0; px < width; px++ {
			x := scaleCoord(px, width, cols)
			c0 := int(math.Floor(x))
			c1 := minInt(c0+1, cols-1)

			cell := GridCell{
				X0: float64(c0), X1: float64(c0) + 1,
				Y0: float64(r0), Y1: float64(r0) + 1,
				V00: values[r0*cols+c0],
				V10: values[r0*cols+c1],
				V01: values[r1*cols+c0],
				V11: values[r1*cols+c1],
			}
			if anyNaN(cell.V00, cell.V10, cell.V01, cell.V11) {
				out[py*width+px] = values[int(math.Round(y))*cols+int(math.Round(x))]
				continue
			}
			v, err := BilinearInterpolate(cell, x, y)
			if err != nil {
				return nil, err
			}
			out[py*width+px] = v
		}
	}
	return out, nil
}

// scaleCoord maps pixel p of an n-pixel axis onto a source axis of size m.
func scaleCoord(p, n, m int) float64 {
	if n <= 1 || m <= 1 {
		return 0
	}
	return float64(p) * float64(m-1) / float64(n-1)
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
