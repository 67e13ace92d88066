package domain

import "strings"

// PlotType is one of the four map products.
type PlotType string

// Supported plot types.
const (
	PlotTempWind PlotType = "temp_wind"
	PlotGeo      PlotType = "geo"
	PlotRain     PlotType = "rain"
	PlotSeaLevel PlotType = "sea_level"
)

// AllPlots lists every plot type.
var AllPlots = []PlotType{PlotTempWind, PlotGeo, PlotRain, PlotSeaLevel}

var plotDirs = map[PlotType]string{
	PlotTempWind: "tempWind",
	PlotGeo:      "geopotential",
	PlotRain:     "rain",
	PlotSeaLevel: "seaLevelPressure",
}

var plotTitles = map[PlotType]string{
	PlotTempWind: "2m temperature and 10m wind",
	PlotGeo:      "Geopotential height 500hPa",
	PlotRain:     "Total precipitation",
	PlotSeaLevel: "Mean sea level pressure",
}

// Dir returns the on-disk subdirectory for the plot type.
func (p PlotType) Dir() string {
	return plotDirs[p]
}

// Title returns a human-readable name for map headers.
func (p PlotType) Title() string {
	return plotTitles[p]
}

// ParsePlotType accepts either the API name ("temp_wind") or the directory
// name ("tempWind").
func ParsePlotType(s string) (PlotType, error) {
	s = strings.TrimSpace(s)
	for _, p := range AllPlots {
		if s == string(p) || s == plotDirs[p] {
			return p, nil
		}
	}
	return "", NewError(CodeInvalidArgument, "invalid plot type: %q", s)
}
