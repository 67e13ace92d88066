package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/adapter/cache"
	"go.ngs.io/weather-maps-api/internal/domain"
)

// Aligned lists the image file names of one forecast for side-by-side
// display. The three lists have the same length and entry i of each shows
// the same valid time.
type Aligned struct {
	Cerrora     []string `json:"cerrora"`
	Graphcast   []string `json:"graphcast"`
	GroundTruth []string `json:"groundTruth"`
}

// Gallery compares cerrora, graphcast and the ground truth for one base time.
type Gallery struct {
	images *ImageService
	times  *TimeService
	index  *cache.Index
	log    *zap.Logger
}

// NewGallery creates a Gallery.
func NewGallery(images *ImageService, times *TimeService, index *cache.Index, log *zap.Logger) *Gallery {
	return &Gallery{images: images, times: times, index: index, log: log}
}

// Compare returns the aligned image names for base. Forecasts with no image
// on disk yet are generated first. Only valid times present for all three
// sources are kept, ascending.
func (g *Gallery) Compare(ctx context.Context, plot domain.PlotType, base int64) (Aligned, error) {
	if plot.Dir() == "" {
		return Aligned{}, domain.NewError(domain.CodeInvalidArgument, "invalid variable type: %q", plot)
	}
	if base < 0 {
		return Aligned{}, domain.NewError(domain.CodeInvalidArgument, "invalid base time %d", base)
	}
	prefix := fmt.Sprintf("%d_", base)

	cerrora := g.index.List(domain.ModelCerrora, plot, prefix)
	if len(cerrora) == 0 {
		g.generate(ctx, domain.ModelCerrora, plot, base)
		cerrora = g.index.List(domain.ModelCerrora, plot, prefix)
	}
	graphcast := g.index.List(domain.ModelGraphcast, plot, prefix)
	if len(graphcast) == 0 {
		g.generate(ctx, domain.ModelGraphcast, plot, base)
		graphcast = g.index.List(domain.ModelGraphcast, plot, prefix)
	}
	truth := g.index.List(domain.ModelCerrora, plot, "gt_"+prefix)

	if err := ctx.Err(); err != nil {
		return Aligned{}, err
	}
	return align(cerrora, graphcast, truth), nil
}

// generate renders every published valid time of the forecast issued at
// base. Failures leave the list short and are only logged.
func (g *Gallery) generate(ctx context.Context, model domain.ModelID, plot domain.PlotType, base int64) {
	at := time.Unix(base, 0).UTC()
	r, ok, err := g.times.Range(ctx, model, plot, &at)
	if err == nil && ok {
		_, err = g.images.Fetch(ctx, plot, model, r)
	}
	if err != nil {
		g.log.Warn("gallery generation failed",
			zap.String("model", string(model)),
			zap.String("plot", string(plot)),
			zap.Int64("base_time", base),
			zap.Error(err))
	}
}

// align keeps the valid times present in all three lists.
func align(cerrora, graphcast, truth []string) Aligned {
	c, gc, gt := byValid(cerrora), byValid(graphcast), byValid(truth)
	var valid []int64
	for v := range c {
		if _, ok := gc[v]; !ok {
			continue
		}
		if _, ok := gt[v]; !ok {
			continue
		}
		valid = append(valid, v)
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })

	out := Aligned{
		Cerrora:     make([]string, 0, len(valid)),
		Graphcast:   make([]string, 0, len(valid)),
		GroundTruth: make([]string, 0, len(valid)),
	}
	for _, v := range valid {
		out.Cerrora = append(out.Cerrora, c[v])
		out.Graphcast = append(out.Graphcast, gc[v])
		out.GroundTruth = append(out.GroundTruth, gt[v])
	}
	return out
}

func byValid(names []string) map[int64]string {
	m := make(map[int64]string, len(names))
	for _, name := range names {
		if _, valid, _, ok := domain.ParseImageName(name); ok {
			m[valid] = name
		}
	}
	return m
}

// Sample returns the path, relative to the output root, of any forecast
// image of model.
func (g *Gallery) Sample(model domain.ModelID) (string, error) {
	rel, ok := g.index.Sample(model)
	if !ok {
		return "", domain.NewError(domain.CodeNotFound, "no images for model %s", model)
	}
	return rel, nil
}
