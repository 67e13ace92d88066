package render

import (
	"math"
	"testing"
)

func TestColormapEndsAndClamping(t *testing.T) {
	for name, m := range map[string]Colormap{"RdBu_r": RdBuR, "viridis": Viridis, "seismic": Seismic, "RdYlBu_r": RdYlBuR} {
		if m.At(0) != m[0] || m.At(-1) != m[0] {
			t.Errorf("%s: low end should clamp to first stop", name)
		}
		if m.At(1) != m[len(m)-1] || m.At(2) != m[len(m)-1] {
			t.Errorf("%s: high end should clamp to last stop", name)
		}
		if m.At(math.NaN()) != m[0] {
			t.Errorf("%s: NaN should map to first stop", name)
		}
	}
}

func TestColormapInterpolates(t *testing.T) {
	m := Colormap{hex(0x000000), hex(0xffffff)}
	c := m.At(0.5)
	if c.R != 128 || c.G != 128 || c.B != 128 {
		t.Errorf("midpoint = %v, want grey 128", c)
	}
}

func TestScaleBands(t *testing.T) {
	s := Scale{Min: -50, Max: 50, Levels: 41, Map: RdBuR}
	tests := []struct {
		v    float64
		want int
	}{
		{-60, 0},
		{-50, 0},
		{-47.4, 1},
		{0, 20},
		{49.9, 39},
		{80, 39},
	}
	for _, tt := range tests {
		if got := s.Band(tt.v); got != tt.want {
			t.Errorf("Band(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
	if s.Color(-100) != s.Color(-50) {
		t.Errorf("values below range should share the lowest band colour")
	}
}
