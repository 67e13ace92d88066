package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"go.ngs.io/weather-maps-api/internal/adapter/cache"
	"go.ngs.io/weather-maps-api/internal/adapter/render"
	"go.ngs.io/weather-maps-api/internal/adapter/store"
	"go.ngs.io/weather-maps-api/internal/domain"
)

const tracerName = "go.ngs.io/weather-maps-api/internal/usecase"

// renderTimeout bounds a shared render once it no longer follows any
// caller's cancellation.
const renderTimeout = 5 * time.Minute

// ImageService returns URLs of rendered maps, drawing the ones that are not
// on disk yet.
type ImageService struct {
	models *Models
	index  *cache.Index
	log    *zap.Logger
	tracer trace.Tracer

	// renders collapses concurrent renders of the same file.
	renders singleflight.Group

	mu      sync.Mutex
	pending map[string]int
}

// NewImageService creates the fetch orchestrator.
func NewImageService(models *Models, index *cache.Index, log *zap.Logger) *ImageService {
	return &ImageService{
		models:  models,
		index:   index,
		log:     log,
		tracer:  otel.Tracer(tracerName),
		pending: make(map[string]int),
	}
}

// Pending reports whether a render of the image at rel (relative to the
// output root) is queued or running.
func (s *ImageService) Pending(rel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[rel] > 0
}

func (s *ImageService) markPending(rels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range rels {
		s.pending[rel]++
	}
}

func (s *ImageService) donePending(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[rel] <= 1 {
		delete(s.pending, rel)
		return
	}
	s.pending[rel]--
}

// handles are the variable arrays needed for one plot, in renderer order.
type handles []store.Array

// Fetch returns one image per requested valid time, in request order.
// Cached images are returned as-is; missing ones are rendered first. An
// image that fails to render is left out of the result.
func (s *ImageService) Fetch(ctx context.Context, plot domain.PlotType, model domain.ModelID, r domain.TimeRange) ([]domain.Image, error) {
	ctx, span := s.tracer.Start(ctx, "ImageService.Fetch", trace.WithAttributes(
		attribute.String("model", string(model)),
		attribute.String("plot", string(plot)),
		attribute.Int64("base_time", r.BaseTime),
		attribute.Int("valid_times", len(r.ValidTime)),
	))
	defer span.End()

	images, err := s.fetch(ctx, plot, model, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("images", len(images)))
	return images, nil
}

func (s *ImageService) fetch(ctx context.Context, plot domain.PlotType, model domain.ModelID, r domain.TimeRange) ([]domain.Image, error) {
	if plot.Dir() == "" {
		return nil, domain.NewError(domain.CodeInvalidArgument, "invalid plot type: %q", plot)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	reg, err := s.models.Resolve(model)
	if err != nil {
		return nil, err
	}
	if !render.Supports(reg.Renderer, plot) {
		return nil, domain.NewError(domain.CodeNotSupported, "%s plots are not supported for model %s yet", plot, model)
	}

	images := make([]domain.Image, 0, len(r.ValidTime))
	if len(r.ValidTime) == 0 {
		return images, nil
	}

	existing := s.index.Existing(model, plot, r)
	if len(existing) == len(r.ValidTime) {
		for _, e := range existing {
			images = append(images, s.image(e.Key))
		}
		return images, nil
	}

	forecast, err := s.load(ctx, reg.Source, reg.Variables.For(plot))
	if err != nil {
		return nil, domain.WrapError(domain.CodeUpstream, err, "failed to load %s data for %s", plot, model)
	}
	var truth handles
	if reg.GroundTruth != nil {
		if truth, err = s.load(ctx, reg.GroundTruth, reg.Variables.For(plot)); err != nil {
			s.log.Warn("ground truth unavailable",
				zap.String("model", string(model)),
				zap.String("plot", string(plot)),
				zap.Error(err))
			truth = nil
		}
	}

	base := r.Base()
	keys := make([]domain.CacheKey, len(r.ValidTime))
	rels := make([]string, len(r.ValidTime))
	for i, v := range r.ValidTime {
		keys[i] = domain.CacheKey{Model: model, Plot: plot, Base: r.BaseTime, Valid: v}
		rels[i] = keys[i].RelPath()
	}
	s.markPending(rels)

	for i, key := range keys {
		if ctx.Err() != nil {
			for _, rel := range rels[i:] {
				s.donePending(rel)
			}
			return nil, ctx.Err()
		}

		lead := key.Lead()
		job := render.Job{
			Path:    s.index.Path(key),
			Title:   fmt.Sprintf("%s %s", model, plot.Title()),
			Base:    base,
			Valid:   time.Unix(key.Valid, 0).UTC(),
			Reverse: true,
		}
		sel := domain.Selection{Time: base, Lead: &lead}
		ok := s.ensure(ctx, reg.Renderer, plot, forecast, key, job, sel)
		s.donePending(rels[i])
		if ok {
			images = append(images, s.image(key))
		}

		if truth != nil {
			s.ensureGroundTruth(ctx, reg, plot, truth, key)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// ensureGroundTruth draws the observation map matching key. Failures are
// logged only.
func (s *ImageService) ensureGroundTruth(ctx context.Context, reg Registration, plot domain.PlotType, truth handles, key domain.CacheKey) {
	key.GroundTruth = true
	rel := key.RelPath()
	s.markPending([]string{rel})
	defer s.donePending(rel)

	valid := time.Unix(key.Valid, 0).UTC()
	job := render.Job{
		Path:  s.index.Path(key),
		Title: fmt.Sprintf("%s ground truth %s", reg.ID, plot.Title()),
		Valid: valid,
	}
	s.ensure(ctx, reg.Renderer, plot, truth, key, job, domain.Selection{Time: valid})
}

// load fetches the variable handles concurrently.
func (s *ImageService) load(ctx context.Context, src store.Source, names []string) (handles, error) {
	if src == nil {
		return nil, domain.NewError(domain.CodeNotFound, "no data source configured")
	}
	out := make(handles, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			a, err := src.Variable(gctx, name)
			if err != nil {
				return fmt.Errorf("variable %s: %w", name, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ensure makes sure the image for key exists, rendering it if needed.
// Concurrent callers for the same file share one render. The render outlives
// the caller that started it, so a disconnecting client does not fail the
// others; each caller waits only as long as its own context allows.
func (s *ImageService) ensure(ctx context.Context, r render.Renderer, plot domain.PlotType, h handles, key domain.CacheKey, job render.Job, sel domain.Selection) bool {
	if _, ok := s.index.Lookup(key); ok {
		return true
	}
	shared := context.WithoutCancel(ctx)
	ch := s.renders.DoChan(job.Path, func() (any, error) {
		if _, ok := s.index.Lookup(key); ok {
			return job.Path, nil
		}
		rel := key.RelPath()
		s.markPending([]string{rel})
		defer s.donePending(rel)

		rctx, cancel := context.WithTimeout(shared, renderTimeout)
		defer cancel()
		return s.render(rctx, r, plot, h, key, job, sel)
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		s.log.Debug("stopped waiting for render",
			zap.String("model", string(key.Model)),
			zap.String("image", key.FileName()),
			zap.Error(ctx.Err()))
		return false
	}
	if err != nil {
		s.log.Error("render failed",
			zap.String("model", string(key.Model)),
			zap.String("plot", string(plot)),
			zap.String("image", key.FileName()),
			zap.Error(err))
		return false
	}
	return true
}

func (s *ImageService) render(ctx context.Context, r render.Renderer, plot domain.PlotType, h handles, key domain.CacheKey, job render.Job, sel domain.Selection) (string, error) {
	ctx, span := s.tracer.Start(ctx, "ImageService.render", trace.WithAttributes(
		attribute.String("model", string(key.Model)),
		attribute.String("plot", string(plot)),
		attribute.String("image", key.FileName()),
	))
	defer span.End()

	path, err := s.draw(ctx, r, plot, h, job, sel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	s.log.Info("image generated",
		zap.String("model", string(key.Model)),
		zap.String("plot", string(plot)),
		zap.String("image", key.FileName()))
	return path, nil
}

func (s *ImageService) draw(ctx context.Context, r render.Renderer, plot domain.PlotType, h handles, job render.Job, sel domain.Selection) (string, error) {
	fields, err := selectFields(ctx, plot, h, sel)
	if err != nil {
		return "", err
	}
	switch plot {
	case domain.PlotTempWind:
		return r.CreateTempWindPlot(ctx, job, fields[0], fields[1], fields[2])
	case domain.PlotGeo:
		return r.CreateGeoPlot(ctx, job, fields[0])
	case domain.PlotRain:
		return r.CreateRainPlot(ctx, job, fields[0])
	case domain.PlotSeaLevel:
		return r.CreateSeaLevelPlot(ctx, job, fields[0])
	}
	return "", domain.NewError(domain.CodeInvalidArgument, "invalid plot type: %q", plot)
}

// selectFields reads the slices for sel and applies the per-plot unit
// conversions. Geopotential is read at 500hPa when the variable has levels.
func selectFields(ctx context.Context, plot domain.PlotType, h handles, sel domain.Selection) ([]*domain.Field, error) {
	fields := make([]*domain.Field, len(h))
	for i, a := range h {
		s := sel
		if plot == domain.PlotGeo {
			if _, ok := a.Levels(); ok {
				level := domain.GeopotentialLevel
				s.Level = &level
			}
		}
		f, err := a.Select(ctx, s)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}

	switch plot {
	case domain.PlotGeo:
		if fields[0].Level != nil {
			fields[0].GeopotentialToHeight()
		}
	case domain.PlotTempWind:
		fields[0].KelvinToCelsius()
	}
	return fields, nil
}

func (s *ImageService) image(key domain.CacheKey) domain.Image {
	return domain.Image{Timestamp: key.Stamp(), URL: s.index.URL(key.RelPath())}
}
