package dataset

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/adapter/store"
	"go.ngs.io/weather-maps-api/internal/domain"
)

// Registry owns at most one open Dataset per model. Datasets are opened on
// first use and kept for the life of the process; a failed open is retried
// by the next caller.
type Registry struct {
	locations map[domain.ModelID]string
	remote    *Remote
	log       *zap.Logger
	openFn    func(path string) (*Dataset, error)

	mu      sync.Mutex
	entries map[domain.ModelID]*registryEntry
}

type registryEntry struct {
	mu sync.Mutex
	ds *Dataset
}

// NewRegistry creates a registry over per-model store locations (local
// paths or gs:// URIs).
func NewRegistry(locations map[domain.ModelID]string, remote *Remote, log *zap.Logger) *Registry {
	return &Registry{
		locations: locations,
		remote:    remote,
		log:       log,
		openFn:    Open,
		entries:   make(map[domain.ModelID]*registryEntry),
	}
}

// Configured reports whether a store location is set for model.
func (r *Registry) Configured(model domain.ModelID) bool {
	return r.locations[model] != ""
}

// Open returns the dataset for model, opening it if needed. Concurrent
// first calls for the same model open the store once.
func (r *Registry) Open(ctx context.Context, model domain.ModelID) (*Dataset, error) {
	r.mu.Lock()
	e, ok := r.entries[model]
	if !ok {
		e = &registryEntry{}
		r.entries[model] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds != nil {
		return e.ds, nil
	}

	location := r.locations[model]
	if location == "" {
		return nil, domain.NewError(domain.CodeNotFound, "no data store configured for model %s", model)
	}

	started := time.Now()
	path, err := r.remote.Resolve(ctx, location)
	if err != nil {
		return nil, domain.WrapError(domain.CodeUpstream, err, "failed to fetch store for %s", model)
	}
	ds, err := r.openFn(path)
	if err != nil {
		return nil, domain.WrapError(domain.CodeUpstream, err, "failed to open store for %s", model)
	}
	r.log.Info("dataset opened",
		zap.String("model", string(model)),
		zap.String("path", path),
		zap.Int("times", len(ds.Times())),
		zap.Int("lead_times", len(ds.LeadTimes())),
		zap.Duration("elapsed", time.Since(started)))

	e.ds = ds
	return ds, nil
}

// Source returns a lazy store.Source for model. The dataset is opened on the
// first call that needs it.
func (r *Registry) Source(model domain.ModelID) store.Source {
	return &lazySource{reg: r, model: model}
}

// Close closes every open dataset.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, e := range r.entries {
		e.mu.Lock()
		if e.ds != nil {
			errs = append(errs, e.ds.Close())
			e.ds = nil
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

type lazySource struct {
	reg   *Registry
	model domain.ModelID
}

func (s *lazySource) Variable(ctx context.Context, name string) (store.Array, error) {
	ds, err := s.reg.Open(ctx, s.model)
	if err != nil {
		return nil, err
	}
	return ds.Variable(ctx, name)
}

func (s *lazySource) Subset(ctx context.Context, q domain.SubsetQuery) (*domain.Subset, error) {
	ds, err := s.reg.Open(ctx, s.model)
	if err != nil {
		return nil, err
	}
	return ds.Subset(ctx, q)
}

func (s *lazySource) TimeAxis(ctx context.Context) ([]time.Time, error) {
	ds, err := s.reg.Open(ctx, s.model)
	if err != nil {
		return nil, err
	}
	return ds.TimeAxis(ctx)
}
