package render

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// defaultArrowStride is the grid spacing between wind arrows on full-size grids.
const defaultArrowStride = 16

// arrowStride picks the grid spacing between arrows so small grids still get
// a readable number of them.
func arrowStride(rows, cols int) int {
	n := rows
	if cols < n {
		n = cols
	}
	if n >= 4*defaultArrowStride {
		return defaultArrowStride
	}
	if s := n / 8; s > 1 {
		return s
	}
	return 1
}

// drawWindArrows overlays arrows for every stride-th grid point onto the map
// area of img. Arrow length is proportional to speed, relative to the fastest
// sampled point. North (positive v) points up.
func drawWindArrows(img *image.RGBA, mapRect image.Rectangle, wind *windLayer, rows, cols int) {
	stride := arrowStride(rows, cols)
	w, h := mapRect.Dx(), mapRect.Dy()

	px := func(c int) float32 {
		if cols <= 1 {
			return float32(w) / 2
		}
		return float32(c) * float32(w-1) / float32(cols-1)
	}
	py := func(r int) float32 {
		if rows <= 1 {
			return float32(h) / 2
		}
		return float32(r) * float32(h-1) / float32(rows-1)
	}

	maxSpeed := 0.0
	for r := stride / 2; r < rows; r += stride {
		for c := stride / 2; c < cols; c += stride {
			u, v := wind.u[r*cols+c], wind.v[r*cols+c]
			if s := math.Hypot(u, v); !math.IsNaN(s) && s > maxSpeed {
				maxSpeed = s
			}
		}
	}
	if maxSpeed == 0 {
		return
	}

	cell := math.Min(float64(w)/float64(cols), float64(h)/float64(rows)) * float64(stride)
	maxLen := 0.8 * cell
	z := vector.NewRasterizer(w, h)
	for r := stride / 2; r < rows; r += stride {
		for c := stride / 2; c < cols; c += stride {
			u, v := wind.u[r*cols+c], wind.v[r*cols+c]
			speed := math.Hypot(u, v)
			if math.IsNaN(speed) || speed == 0 {
				continue
			}
			length := maxLen * speed / maxSpeed
			dx, dy := float32(u/speed), float32(-v/speed)
			addArrow(z, px(c), py(r), dx, dy, float32(length))
		}
	}
	z.Draw(img, mapRect, image.NewUniform(arrowColor), image.Point{})
}

// addArrow adds a centred arrow of the given length along unit vector (dx, dy).
func addArrow(z *vector.Rasterizer, x, y, dx, dy, length float32) {
	if length < 2 {
		length = 2
	}
	const shaft = 0.6
	head := length * 0.35
	if head < 2 {
		head = 2
	}
	// Normal to the arrow direction.
	nx, ny := -dy, dx

	tailX, tailY := x-dx*length/2, y-dy*length/2
	tipX, tipY := x+dx*length/2, y+dy*length/2
	neckX, neckY := tipX-dx*head, tipY-dy*head

	z.MoveTo(tailX+nx*shaft, tailY+ny*shaft)
	z.LineTo(neckX+nx*shaft, neckY+ny*shaft)
	z.LineTo(neckX-nx*shaft, neckY-ny*shaft)
	z.LineTo(tailX-nx*shaft, tailY-ny*shaft)
	z.ClosePath()

	half := head * 0.5
	z.MoveTo(tipX, tipY)
	z.LineTo(neckX+nx*half, neckY+ny*half)
	z.LineTo(neckX-nx*half, neckY-ny*half)
	z.ClosePath()
}
