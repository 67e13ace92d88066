package usecase

import (
	"sync"

	"go.ngs.io/weather-maps-api/internal/adapter/render"
	"go.ngs.io/weather-maps-api/internal/adapter/store"
	"go.ngs.io/weather-maps-api/internal/domain"
)

// Registration binds a model to its data source and renderer.
type Registration struct {
	ID       domain.ModelID
	Source   store.Source
	Renderer render.Renderer

	// GroundTruth is an optional observation store drawn next to every
	// forecast. It uses the same variable names as the forecast.
	GroundTruth store.Source

	Variables domain.VariableSet

	// Discoverable models answer the base-time and valid-time queries.
	Discoverable bool
}

// Models is the fixed set of model registrations, built once at startup.
type Models struct {
	regs  map[domain.ModelID]Registration
	order []domain.ModelID
}

// NewModels creates a registry. Later registrations of the same ID win.
func NewModels(regs ...Registration) *Models {
	m := &Models{regs: make(map[domain.ModelID]Registration, len(regs))}
	for _, r := range regs {
		if _, dup := m.regs[r.ID]; !dup {
			m.order = append(m.order, r.ID)
		}
		m.regs[r.ID] = r
	}
	return m
}

// Resolve returns the registration of id.
func (m *Models) Resolve(id domain.ModelID) (Registration, error) {
	r, ok := m.regs[id]
	if !ok {
		return Registration{}, domain.NewError(domain.CodeInvalidArgument, "invalid model type: %q", id)
	}
	return r, nil
}

// IDs returns the registered model IDs in registration order.
func (m *Models) IDs() []domain.ModelID {
	out := make([]domain.ModelID, len(m.order))
	copy(out, m.order)
	return out
}

// CurrentModel is the process-wide "selected model" of the legacy
// current-model and switch-model endpoints.
//
// Deprecated: every data endpoint takes the model explicitly. Nothing but
// those two endpoints reads this value.
type CurrentModel struct {
	mu     sync.RWMutex
	id     domain.ModelID
	models *Models
}

// NewCurrentModel creates the shim with an initial value.
func NewCurrentModel(models *Models, initial domain.ModelID) *CurrentModel {
	return &CurrentModel{id: initial, models: models}
}

// Current returns the selected model.
func (c *CurrentModel) Current() domain.ModelID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Switch selects another model. Unknown models are rejected and leave the
// current value unchanged.
func (c *CurrentModel) Switch(s string) (domain.ModelID, error) {
	id, err := domain.ParseModel(s)
	if err != nil {
		return "", err
	}
	if _, err := c.models.Resolve(id); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	return id, nil
}
