package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"go.ngs.io/weather-maps-api/internal/adapter/cache"
	"go.ngs.io/weather-maps-api/internal/adapter/render"
	"go.ngs.io/weather-maps-api/internal/adapter/store"
	"go.ngs.io/weather-maps-api/internal/domain"
)

var testBase = time.Date(2022, 5, 5, 0, 0, 0, 0, time.UTC)

func hours(h int) int64 {
	return testBase.Add(time.Duration(h) * time.Hour).Unix()
}

// fakeSource is an in-memory store.Source.
type fakeSource struct {
	mu            sync.Mutex
	vars          map[string]*fakeArray
	times         []time.Time
	variableCalls int
	selections    []domain.Selection
	subsets       []domain.SubsetQuery
	subsetErr     error
}

func newFakeSource(names ...string) *fakeSource {
	s := &fakeSource{vars: make(map[string]*fakeArray)}
	for _, n := range names {
		s.vars[n] = &fakeArray{src: s, name: n, value: 1}
	}
	return s
}

func (s *fakeSource) Variable(_ context.Context, name string) (store.Array, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variableCalls++
	a, ok := s.vars[name]
	if !ok {
		return nil, domain.NewError(domain.CodeNotFound, "variable %q not found", name)
	}
	return a, nil
}

func (s *fakeSource) Subset(_ context.Context, q domain.SubsetQuery) (*domain.Subset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subsets = append(s.subsets, q)
	if s.subsetErr != nil {
		return nil, s.subsetErr
	}
	for _, v := range q.Variables {
		if _, ok := s.vars[v]; !ok {
			return nil, domain.NewError(domain.CodeNotFound, "variable %q not found", v)
		}
	}
	out := &domain.Subset{Variables: q.Variables, LeadTimes: q.LeadTimes}
	for _, t := range q.DateRange() {
		for _, have := range s.times {
			if have.Equal(t) {
				out.Times = append(out.Times, t)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeSource) TimeAxis(context.Context) ([]time.Time, error) {
	return s.times, nil
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variableCalls
}

func (s *fakeSource) selected() []domain.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Selection(nil), s.selections...)
}

// fakeArray returns a constant 2x3 slice.
type fakeArray struct {
	src    *fakeSource
	name   string
	value  float64
	levels []float64
}

func (a *fakeArray) Select(_ context.Context, sel domain.Selection) (*domain.Field, error) {
	a.src.mu.Lock()
	a.src.selections = append(a.src.selections, sel)
	a.src.mu.Unlock()

	f := &domain.Field{Name: a.name, Rows: 2, Cols: 3, Values: make([]float64, 6), Time: sel.Time}
	for i := range f.Values {
		f.Values[i] = a.value
	}
	if sel.Lead != nil {
		f.Lead = *sel.Lead
	}
	if sel.Level != nil && len(a.levels) > 0 {
		level := *sel.Level
		f.Level = &level
	}
	return f, nil
}

func (a *fakeArray) Levels() ([]float64, bool) {
	return a.levels, len(a.levels) > 0
}

// spyRenderer records calls and writes a placeholder file for each job.
type spyRenderer struct {
	mu     sync.Mutex
	jobs   []render.Job
	fields [][]*domain.Field
	fail   map[int64]bool  // Valid times to fail.
	block  chan struct{}   // When set, renders wait for it to close.
	inside chan render.Job // When set, receives each job as it starts.
}

var _ render.Renderer = (*spyRenderer)(nil)

func (r *spyRenderer) do(ctx context.Context, job render.Job, fields ...*domain.Field) (string, error) {
	if r.inside != nil {
		r.inside <- job
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.fields = append(r.fields, fields)
	fail := r.fail[job.Valid.Unix()]
	r.mu.Unlock()
	if fail {
		return "", errors.New("plot failed")
	}
	if err := os.MkdirAll(filepath.Dir(job.Path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(job.Path, []byte("RIFF-image"), 0o644); err != nil {
		return "", err
	}
	return job.Path, nil
}

func (r *spyRenderer) CreateTempWindPlot(ctx context.Context, job render.Job, temp, u, v *domain.Field) (string, error) {
	return r.do(ctx, job, temp, u, v)
}

func (r *spyRenderer) CreateGeoPlot(ctx context.Context, job render.Job, geo *domain.Field) (string, error) {
	return r.do(ctx, job, geo)
}

func (r *spyRenderer) CreateRainPlot(ctx context.Context, job render.Job, rain *domain.Field) (string, error) {
	return r.do(ctx, job, rain)
}

func (r *spyRenderer) CreateSeaLevelPlot(ctx context.Context, job render.Job, slp *domain.Field) (string, error) {
	return r.do(ctx, job, slp)
}

func (r *spyRenderer) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *spyRenderer) recorded() ([]render.Job, [][]*domain.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]render.Job(nil), r.jobs...), append([][]*domain.Field(nil), r.fields...)
}

// fixture wires an ImageService over a temp output root.
type fixture struct {
	index     *cache.Index
	images    *ImageService
	times     *TimeService
	graphcast *fakeSource
	cerrora   *fakeSource
	truth     *fakeSource
	renderer  *spyRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	f := &fixture{
		index:     cache.NewIndex(t.TempDir(), "http://localhost:8080/streaming"),
		graphcast: newFakeSource(allNames(domain.GraphcastVariables)...),
		cerrora:   newFakeSource(allNames(domain.CerroraVariables)...),
		truth:     newFakeSource(allNames(domain.CerroraVariables)...),
		renderer:  &spyRenderer{},
	}
	models := NewModels(
		Registration{ID: domain.ModelGraphcast, Source: f.graphcast, Renderer: f.renderer, Variables: domain.GraphcastVariables, Discoverable: true},
		Registration{ID: domain.ModelCerrora, Source: f.cerrora, Renderer: f.renderer, GroundTruth: f.truth, Variables: domain.CerroraVariables, Discoverable: true},
		Registration{ID: domain.ModelExperimental, Source: newFakeSource(), Renderer: render.Unsupported{Model: domain.ModelExperimental}, Variables: domain.CerroraVariables},
	)
	f.images = NewImageService(models, f.index, log)
	f.times = NewTimeService(models, 0, log)
	return f
}

func allNames(v domain.VariableSet) []string {
	return []string{v.Temperature, v.WindU, v.WindV, v.Geopotential, v.Precipitation, v.SeaLevelPressure}
}

// seed writes a cached image for key.
func (f *fixture) seed(t *testing.T, key domain.CacheKey) {
	t.Helper()
	p := f.index.Path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}
}
