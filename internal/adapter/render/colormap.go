package render

import (
	"image/color"
	"math"
)

// Colormap interpolates linearly between equally spaced stops.
type Colormap []color.RGBA

func hex(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// Palettes approximating the matplotlib maps the products are known by.
var (
	RdBuR = Colormap{
		hex(0x053061), hex(0x2166ac), hex(0x4393c3), hex(0x92c5de), hex(0xd1e5f0), hex(0xf7f7f7),
		hex(0xfddbc7), hex(0xf4a582), hex(0xd6604d), hex(0xb2182b), hex(0x67001f),
	}
	Viridis = Colormap{
		hex(0x440154), hex(0x482878), hex(0x3e4989), hex(0x31688e), hex(0x26828e),
		hex(0x1f9e89), hex(0x35b779), hex(0x6ece58), hex(0xb5de2b), hex(0xfde725),
	}
	Seismic = Colormap{
		hex(0x00004c), hex(0x0000ff), hex(0xffffff), hex(0xff0000), hex(0x800000),
	}
	RdYlBuR = Colormap{
		hex(0x313695), hex(0x4575b4), hex(0x74add1), hex(0xabd9e9), hex(0xe0f3f8), hex(0xffffbf),
		hex(0xfee090), hex(0xfdae61), hex(0xf46d43), hex(0xd73027), hex(0xa50026),
	}
)

// At returns the colour at t in [0, 1]. Out-of-range values clamp.
func (m Colormap) At(t float64) color.RGBA {
	if len(m) == 0 {
		return color.RGBA{A: 0xff}
	}
	if len(m) == 1 || math.IsNaN(t) || t <= 0 {
		return m[0]
	}
	if t >= 1 {
		return m[len(m)-1]
	}
	pos := t * float64(len(m)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := m[i], m[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*frac))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}

// Scale maps values onto a colormap in discrete bands, like filled contours
// with extended ends.
type Scale struct {
	Min, Max float64
	Levels   int // Number of contour levels; Levels-1 colour bands.
	Map      Colormap
}

// Band returns the colour band index of v.
func (s Scale) Band(v float64) int {
	bands := s.Levels - 1
	if bands < 1 {
		bands = 1
	}
	t := (v - s.Min) / (s.Max - s.Min)
	b := int(math.Floor(t * float64(bands)))
	if b < 0 {
		return 0
	}
	if b >= bands {
		return bands - 1
	}
	return b
}

// Color returns the fill colour of v.
func (s Scale) Color(v float64) color.RGBA {
	bands := s.Levels - 1
	if bands < 1 {
		bands = 1
	}
	return s.Map.At((float64(s.Band(v)) + 0.5) / float64(bands))
}
