package domain

import "strings"

// ModelID identifies a forecast model (and its on-disk image directory).
type ModelID string

// Known models.
const (
	ModelGraphcast    ModelID = "graphcast"
	ModelCerrora      ModelID = "cerrora"
	ModelExperimental ModelID = "experimental"

	// ModelCerroraGT is the ground-truth companion of cerrora. It is never
	// selected by clients.
	ModelCerroraGT ModelID = "cerrora_gt"
)

// SelectableModels lists the models a client may request, in display order.
var SelectableModels = []ModelID{ModelGraphcast, ModelCerrora, ModelExperimental}

// ParseModel resolves a client-supplied model identifier.
func ParseModel(s string) (ModelID, error) {
	id := ModelID(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range SelectableModels {
		if id == m {
			return m, nil
		}
	}
	return "", NewError(CodeInvalidArgument, "invalid model type: %q", s)
}

// VariableSet names the physical variables a model store uses for each plot.
type VariableSet struct {
	Temperature      string
	WindU            string
	WindV            string
	Geopotential     string
	Precipitation    string
	SeaLevelPressure string
}

// For returns the variable names needed to draw plot, in renderer argument order.
func (v VariableSet) For(plot PlotType) []string {
	switch plot {
	case PlotTempWind:
		return []string{v.Temperature, v.WindU, v.WindV}
	case PlotGeo:
		return []string{v.Geopotential}
	case PlotRain:
		return []string{v.Precipitation}
	case PlotSeaLevel:
		return []string{v.SeaLevelPressure}
	}
	return nil
}

// Primary returns the variable used to probe a store for plot.
func (v VariableSet) Primary(plot PlotType) string {
	names := v.For(plot)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// GraphcastVariables follows the ERA5/WeatherBench naming used by GraphCast outputs.
var GraphcastVariables = VariableSet{
	Temperature:      "2m_temperature",
	WindU:            "10m_u_component_of_wind",
	WindV:            "10m_v_component_of_wind",
	Geopotential:     "geopotential",
	Precipitation:    "total_precipitation_6hr",
	SeaLevelPressure: "mean_sea_level_pressure",
}

// CerroraVariables uses GRIB short names. The ground-truth and experimental
// stores share them.
var CerroraVariables = VariableSet{
	Temperature:      "t2m",
	WindU:            "10u",
	WindV:            "10v",
	Geopotential:     "z",
	Precipitation:    "tp",
	SeaLevelPressure: "msl",
}
