// Package palette builds the color table for the rotating rainbow.
//
// Each of the three channels is a half-wave rectified sine over the ring,
// with green and blue shifted by one and two channel offsets. Rotating the
// table over the ring walks every position through the hue wheel.
package palette

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette is one full color cycle across the ring. It is never mutated
// after Generate returns.
type Palette []colorful.Color

// ChannelOffset is the ring distance between the red, green and blue phase
// sources. Truncation is kept, so rings not divisible by 3 end up with a
// slightly wider gap between blue and red.
func ChannelOffset(n int) int {
	if n <= 0 {
		return 0
	}
	return n / 3
}

// Phases returns the normalized phase fractions of position i, each in [0,1).
func Phases(i, n, p int) (r, g, b float64) {
	if n <= 0 {
		return 0, 0, 0
	}
	fn := float64(n)
	r = float64(mod(i, n)) / fn
	g = float64(mod(i+p, n)) / fn
	b = float64(mod(i+2*p, n)) / fn
	return r, g, b
}

// Generate computes n entries using channel offset p and lightness l.
// n <= 0 yields an empty palette.
func Generate(n, p int, l float64) Palette {
	if n <= 0 {
		return Palette{}
	}
	out := make(Palette, n)
	for i := 0; i < n; i++ {
		rp, gp, bp := Phases(i, n, p)
		out[i] = colorful.Color{
			R: channel(rp, l),
			G: channel(gp, l),
			B: channel(bp, l),
		}
	}
	return out
}

// New is Generate with the default channel offset n/3.
func New(n int, lightness float64) Palette {
	return Generate(n, ChannelOffset(n), lightness)
}

func (p Palette) Len() int { return len(p) }

// At returns the entry at i modulo the palette length.
func (p Palette) At(i int) colorful.Color {
	if len(p) == 0 {
		return colorful.Color{}
	}
	return p[mod(i, len(p))]
}

func channel(phase, l float64) float64 {
	v := math.Sin(2*math.Pi*phase) * l
	if v < 0 {
		return 0
	}
	return v
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
