// Package waveform draws the live level animation: a row of pixelated bars
// whose heights come from two superposed sine waves scaled by loudness.
package waveform

import (
	"image/color"
	"math"
)

const (
	DefaultBars   = 64
	DefaultWidth  = 800
	DefaultHeight = 120

	// TimeStep is how far the animation clock moves per active frame.
	TimeStep = 0.5

	// Quantum is the pixelation step bar heights are floored to.
	Quantum = 4

	BarGap    = 2
	GlowBlur  = 10
	LineWidth = 2
)

var (
	Background = color.RGBA{0x00, 0x00, 0x00, 0xff}
	Centerline = color.RGBA{0x33, 0x33, 0x33, 0xff}
	Neon       = color.RGBA{0x00, 0xff, 0x41, 0xff}
	NeonDark   = color.RGBA{0x00, 0xcc, 0x33, 0xff}

	BarGradient = Gradient{Edge: Neon, Mid: NeonDark}
	BarGlow     = Glow{Color: Neon, Blur: GlowBlur}
)

// Gradient is a vertical three-stop gradient: Edge at top and bottom, Mid at
// the centre.
type Gradient struct {
	Edge, Mid color.RGBA
}

// At returns the colour at p in [0,1] from top to bottom.
func (g Gradient) At(p float64) color.RGBA {
	p = max(0, min(1, p))
	if p < 0.5 {
		return lerp(g.Edge, g.Mid, p*2)
	}
	return lerp(g.Mid, g.Edge, (p-0.5)*2)
}

type Glow struct {
	Color color.RGBA
	Blur  float64
}

type Rect struct {
	X, Y, W, H float64
}

// Canvas is a drawing surface in its own pixel coordinates.
type Canvas interface {
	Size() (w, h int)
	Clear(c color.RGBA)
	Bar(r Rect, g Gradient, glow Glow)
	HLine(y, width float64, c color.RGBA)
}

// BarHeight is the pixelated height of bar i at clock t and loudness l.
func BarHeight(t, l float64, i int) float64 {
	fi := float64(i)
	a1 := math.Sin(t*0.02+fi*0.1) * (l*50 + 10)
	a2 := math.Sin(t*0.015+fi*0.05) * (l*30 + 5)
	return math.Floor(math.Abs(a1+a2)/Quantum) * Quantum
}

// Bars fills dst with n bar heights.
func Bars(t, l float64, n int, dst []float64) []float64 {
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = BarHeight(t, l, i)
	}
	return dst
}

// Layout returns the rectangle of bar i of n with height h on a w×ht canvas,
// centred vertically.
func Layout(i, n int, h float64, w, ht int) Rect {
	bw := float64(w) / float64(n)
	return Rect{
		X: float64(i) * bw,
		Y: float64(ht)/2 - h/2,
		W: bw - BarGap,
		H: h,
	}
}

func lerp(a, b color.RGBA, p float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*p))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), mix(a.A, b.A)}
}
