// Package scheduler pre-renders the latest forecasts in the background.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/domain"
)

// Discoverer finds the latest forecast of a model.
type Discoverer interface {
	Range(ctx context.Context, model domain.ModelID, plot domain.PlotType, base *time.Time) (domain.TimeRange, bool, error)
}

// Fetcher renders the images of a forecast.
type Fetcher interface {
	Fetch(ctx context.Context, plot domain.PlotType, model domain.ModelID, r domain.TimeRange) ([]domain.Image, error)
}

// jobTimeout bounds one warm-up run.
const jobTimeout = 30 * time.Minute

// Scheduler periodically renders every plot of the latest base time of
// each model so the first client request is a cache hit.
type Scheduler struct {
	scheduler *gocron.Scheduler
	times     Discoverer
	images    Fetcher
	models    []domain.ModelID
	interval  time.Duration
	log       *zap.Logger
}

// New creates a Scheduler.
func New(models []domain.ModelID, interval time.Duration, times Discoverer, images Fetcher, log *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		times:     times,
		images:    images,
		models:    models,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the warm-up job, running it once immediately.
func (s *Scheduler) Start() error {
	if len(s.models) == 0 || s.interval <= 0 {
		s.log.Info("warm-up disabled")
		return nil
	}
	if _, err := s.scheduler.Every(s.interval).Do(s.Run); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info("warm-up scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Run renders the latest forecast of every model and plot. Errors are
// logged and never stop the run.
func (s *Scheduler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	started := time.Now()
	rendered := 0
	for _, model := range s.models {
		for _, plot := range domain.AllPlots {
			r, ok, err := s.times.Range(ctx, model, plot, nil)
			if err != nil {
				s.log.Warn("warm-up discovery failed",
					zap.String("model", string(model)),
					zap.String("plot", string(plot)),
					zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			images, err := s.images.Fetch(ctx, plot, model, r)
			if err != nil {
				s.log.Warn("warm-up fetch failed",
					zap.String("model", string(model)),
					zap.String("plot", string(plot)),
					zap.Error(err))
				continue
			}
			rendered += len(images)
		}
	}
	s.log.Info("warm-up completed",
		zap.Int("images", rendered),
		zap.Duration("elapsed", time.Since(started)))
}
