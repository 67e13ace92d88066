package main

import (
	"testing"

	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/adapter/render"
	"go.ngs.io/weather-maps-api/internal/adapter/store/dataset"
	"go.ngs.io/weather-maps-api/internal/domain"
	"go.ngs.io/weather-maps-api/internal/usecase"
)

func TestRegistrations(t *testing.T) {
	log := zap.NewNop()
	registry := dataset.NewRegistry(map[domain.ModelID]string{
		domain.ModelCerroraGT: "./data/cerrora_gt.nc",
	}, nil, log)
	raster := render.NewRaster(render.Options{Width: 256, Quality: 80}, log)

	models := usecase.NewModels(registrations(registry, raster)...)
	tests := []struct {
		model        domain.ModelID
		vars         domain.VariableSet
		discoverable bool
		renders      bool
		truth        bool
	}{
		{domain.ModelGraphcast, domain.GraphcastVariables, true, true, false},
		{domain.ModelCerrora, domain.CerroraVariables, true, true, true},
		{domain.ModelExperimental, domain.CerroraVariables, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.model), func(t *testing.T) {
			reg, err := models.Resolve(tt.model)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if reg.Variables != tt.vars {
				t.Errorf("Variables = %+v, want %+v", reg.Variables, tt.vars)
			}
			if reg.Discoverable != tt.discoverable {
				t.Errorf("Discoverable = %v, want %v", reg.Discoverable, tt.discoverable)
			}
			if got := render.Supports(reg.Renderer, domain.PlotGeo); got != tt.renders {
				t.Errorf("renders geo = %v, want %v", got, tt.renders)
			}
			if got := reg.GroundTruth != nil; got != tt.truth {
				t.Errorf("ground truth = %v, want %v", got, tt.truth)
			}
		})
	}
}
