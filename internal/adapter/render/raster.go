package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"go.ngs.io/weather-maps-api/internal/adapter/interp"
	"go.ngs.io/weather-maps-api/internal/domain"
)

const (
	titleHeight    = 22
	colorbarHeight = 14
	minMapHeight   = 64
)

var (
	backgroundColor = color.RGBA{0x2C, 0x3E, 0x50, 0xFF}
	missingColor    = color.RGBA{0xE8, 0xE8, 0xE8, 0xFF}
	arrowColor      = color.RGBA{0x10, 0x10, 0x10, 0xFF}
)

// Fixed colour scales per product.
var (
	temperatureScale   = Scale{Min: -50, Max: 50, Levels: 41, Map: RdBuR}
	geopotentialScale  = Scale{Min: 4800, Max: 5800, Levels: 21, Map: Viridis}
	precipitationScale = Scale{Min: 0, Max: 0.15, Levels: 16, Map: Seismic}
	pressureScale      = Scale{Min: 980, Max: 1030, Levels: 26, Map: RdYlBuR}
)

// Options configures a Raster renderer.
type Options struct {
	Width   int     // Output width in pixels.
	Quality float32 // WebP quality, 0-100.
}

// Raster draws filled-colour maps with an optional wind-arrow overlay and
// writes them as lossy WebP.
//
// Only one image is drawn at a time across the whole process: the token
// channel is the exclusive-access lock, held for the duration of a call.
// This serializes rendering and bounds its memory use at the cost of
// throughput.
type Raster struct {
	token   chan struct{}
	width   int
	quality float32
	log     *zap.Logger
}

var _ Renderer = (*Raster)(nil)

// NewRaster creates a renderer.
func NewRaster(opts Options, log *zap.Logger) *Raster {
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	return &Raster{
		token:   make(chan struct{}, 1),
		width:   opts.Width,
		quality: opts.Quality,
		log:     log,
	}
}

// layer is one scalar grid to colour.
type layer struct {
	values     []float64
	rows, cols int
	scale      Scale
	units      string
}

// windLayer holds u/v components on the same grid as the scalar layer.
type windLayer struct {
	u, v []float64
}

// CreateTempWindPlot draws temperature (degC) with wind arrows.
func (r *Raster) CreateTempWindPlot(ctx context.Context, job Job, temp, windU, windV *domain.Field) (string, error) {
	if err := sameShape(temp, windU, windV); err != nil {
		return "", err
	}
	l := layer{values: temp.Values, rows: temp.Rows, cols: temp.Cols, scale: temperatureScale, units: "degC"}
	return r.draw(ctx, job, l, &windLayer{u: windU.Values, v: windV.Values})
}

// CreateGeoPlot draws 500hPa geopotential height (m).
func (r *Raster) CreateGeoPlot(ctx context.Context, job Job, geo *domain.Field) (string, error) {
	if err := sameShape(geo); err != nil {
		return "", err
	}
	l := layer{values: geo.Values, rows: geo.Rows, cols: geo.Cols, scale: geopotentialScale, units: "m"}
	return r.draw(ctx, job, l, nil)
}

// CreateRainPlot draws precipitation, scaled by 1/1000 for display.
func (r *Raster) CreateRainPlot(ctx context.Context, job Job, rain *domain.Field) (string, error) {
	if err := sameShape(rain); err != nil {
		return "", err
	}
	l := layer{values: scaled(rain.Values, 1.0/1000), rows: rain.Rows, cols: rain.Cols, scale: precipitationScale, units: "m"}
	return r.draw(ctx, job, l, nil)
}

// CreateSeaLevelPlot draws mean sea-level pressure, converted from Pa to hPa.
func (r *Raster) CreateSeaLevelPlot(ctx context.Context, job Job, slp *domain.Field) (string, error) {
	if err := sameShape(slp); err != nil {
		return "", err
	}
	l := layer{values: scaled(slp.Values, 1.0/100), rows: slp.Rows, cols: slp.Cols, scale: pressureScale, units: "hPa"}
	return r.draw(ctx, job, l, nil)
}

func (r *Raster) acquire(ctx context.Context) error {
	select {
	case r.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Raster) release() {
	<-r.token
}

func (r *Raster) draw(ctx context.Context, job Job, l layer, wind *windLayer) (string, error) {
	if err := r.acquire(ctx); err != nil {
		return "", fmt.Errorf("waiting for renderer: %w", err)
	}
	defer r.release()

	started := time.Now()
	values := l.values
	if job.Reverse {
		values = flipRows(values, l.rows, l.cols)
		if wind != nil {
			wind = &windLayer{u: flipRows(wind.u, l.rows, l.cols), v: flipRows(wind.v, l.rows, l.cols)}
		}
	}

	width := r.width
	mapHeight := width * l.rows / l.cols
	if mapHeight < minMapHeight {
		mapHeight = minMapHeight
	}
	if mapHeight > 4*width {
		mapHeight = 4 * width
	}

	pixels, err := interp.Resample(values, l.rows, l.cols, width, mapHeight)
	if err != nil {
		return "", fmt.Errorf("failed to resample grid: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, titleHeight+mapHeight+colorbarHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	for y := 0; y < mapHeight; y++ {
		for x := 0; x < width; x++ {
			v := pixels[y*width+x]
			if math.IsNaN(v) {
				img.SetRGBA(x, titleHeight+y, missingColor)
				continue
			}
			img.SetRGBA(x, titleHeight+y, l.scale.Color(v))
		}
	}

	if wind != nil {
		mapRect := image.Rect(0, titleHeight, width, titleHeight+mapHeight)
		drawWindArrows(img, mapRect, wind, l.rows, l.cols)
	}

	barTop := titleHeight + mapHeight
	for x := 0; x < width; x++ {
		t := float64(x) / math.Max(1, float64(width-1))
		c := l.scale.Color(l.scale.Min + t*(l.scale.Max-l.scale.Min))
		for y := barTop; y < barTop+colorbarHeight; y++ {
			img.SetRGBA(x, y, c)
		}
	}

	drawText(img, 6, 15, headline(job, l))

	if err := writeAtomic(job.Path, img, r.quality); err != nil {
		return "", err
	}
	r.log.Debug("image rendered",
		zap.String("path", job.Path),
		zap.Int("width", width),
		zap.Int("height", img.Bounds().Dy()),
		zap.Duration("elapsed", time.Since(started)))
	return job.Path, nil
}

func headline(job Job, l layer) string {
	s := fmt.Sprintf("%s [%g..%g %s]", job.Title, l.scale.Min, l.scale.Max, l.units)
	if !job.Valid.IsZero() {
		s += "  " + job.Valid.UTC().Format(domain.LabelLayout)
		if !job.Base.IsZero() {
			s += fmt.Sprintf(" (+%dh)", int(job.Valid.Sub(job.Base).Hours()))
		}
	}
	return s
}

func drawText(img *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func sameShape(fields ...*domain.Field) error {
	for _, f := range fields {
		if f == nil {
			return fmt.Errorf("missing field")
		}
	}
	first := fields[0]
	for _, f := range fields {
		if f.Rows < 1 || f.Cols < 1 || len(f.Values) != f.Rows*f.Cols {
			return fmt.Errorf("field %q has invalid shape %dx%d with %d values", f.Name, f.Rows, f.Cols, len(f.Values))
		}
		if f.Rows != first.Rows || f.Cols != first.Cols {
			return fmt.Errorf("field %q is %dx%d, expected %dx%d", f.Name, f.Rows, f.Cols, first.Rows, first.Cols)
		}
	}
	return nil
}

func scaled(values []float64, k float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * k
	}
	return out
}

func flipRows(values []float64, rows, cols int) []float64 {
	out := make([]float64, len(values))
	for r := 0; r < rows; r++ {
		copy(out[r*cols:(r+1)*cols], values[(rows-1-r)*cols:(rows-r)*cols])
	}
	return out
}
