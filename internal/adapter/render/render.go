// Package render turns selected dataset slices into map images on disk.
package render

import (
	"context"
	"time"

	"go.ngs.io/weather-maps-api/internal/domain"
)

// Job describes one image to produce.
type Job struct {
	// Path is the absolute destination. The file appears atomically.
	Path string
	// Title is drawn in the header band, followed by the valid time.
	Title string
	Base  time.Time
	Valid time.Time
	// Reverse flips the grid rows before drawing. Forecasts are drawn
	// reversed, ground truth is not.
	Reverse bool
}

// Renderer draws the four map products. Implementations serialize their own
// calls where the drawing surface requires it. Each method returns the path
// written, or an error and no file.
type Renderer interface {
	CreateTempWindPlot(ctx context.Context, job Job, temp, windU, windV *domain.Field) (string, error)
	CreateGeoPlot(ctx context.Context, job Job, geo *domain.Field) (string, error)
	CreateRainPlot(ctx context.Context, job Job, rain *domain.Field) (string, error)
	CreateSeaLevelPlot(ctx context.Context, job Job, slp *domain.Field) (string, error)
}

// Supporter is implemented by renderers that can draw only some plots.
type Supporter interface {
	Supports(plot domain.PlotType) bool
}

// Supports reports whether r can draw plot. Renderers without a Supporter
// implementation support everything.
func Supports(r Renderer, plot domain.PlotType) bool {
	if s, ok := r.(Supporter); ok {
		return s.Supports(plot)
	}
	return true
}

// Unsupported is the renderer of models whose plots are not implemented yet.
type Unsupported struct {
	Model domain.ModelID
}

var (
	_ Renderer  = Unsupported{}
	_ Supporter = Unsupported{}
)

// Supports always returns false.
func (u Unsupported) Supports(domain.PlotType) bool { return false }

func (u Unsupported) notSupported(plot domain.PlotType) error {
	return domain.WrapError(domain.CodeNotSupported, domain.ErrNotSupported,
		"%s plots are not yet supported for model %s", plot, u.Model)
}

// CreateTempWindPlot returns a not-supported error.
func (u Unsupported) CreateTempWindPlot(context.Context, Job, *domain.Field, *domain.Field, *domain.Field) (string, error) {
	return "", u.notSupported(domain.PlotTempWind)
}

// CreateGeoPlot returns a not-supported error.
func (u Unsupported) CreateGeoPlot(context.Context, Job, *domain.Field) (string, error) {
	return "", u.notSupported(domain.PlotGeo)
}

// CreateRainPlot returns a not-supported error.
func (u Unsupported) CreateRainPlot(context.Context, Job, *domain.Field) (string, error) {
	return "", u.notSupported(domain.PlotRain)
}

// CreateSeaLevelPlot returns a not-supported error.
func (u Unsupported) CreateSeaLevelPlot(context.Context, Job, *domain.Field) (string, error) {
	return "", u.notSupported(domain.PlotSeaLevel)
}
