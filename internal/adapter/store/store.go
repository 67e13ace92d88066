package store

import (
	"context"
	"time"

	"go.ngs.io/weather-maps-api/internal/domain"
)

// Source is a lazily opened gridded dataset for one model.
type Source interface {
	// Variable returns a handle on a named variable. Only metadata is read;
	// data is read on Select.
	Variable(ctx context.Context, name string) (Array, error)

	// Subset enumerates the requested times and lead times present in the store.
	Subset(ctx context.Context, q domain.SubsetQuery) (*domain.Subset, error)

	// TimeAxis returns every sample time in the store, ascending.
	TimeAxis(ctx context.Context) ([]time.Time, error)
}

// Array is a handle on one variable of a Source.
type Array interface {
	// Select reads the 2D slice nearest to sel.
	Select(ctx context.Context, sel domain.Selection) (*domain.Field, error)

	// Levels returns the vertical axis, if the variable has one.
	Levels() ([]float64, bool)
}
