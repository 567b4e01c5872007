//go:build gui

package gui

import (
	"bytes"
	"image"
	"image/png"

	"transcribo/waveform"
)

// iconPNG draws the window icon: a few neon bars on black.
func iconPNG() []byte {
	const size = 64
	r := waveform.NewRaster(size, size)
	r.Clear(waveform.Background)
	heights := []float64{20, 36, 52, 36, 20}
	w := float64(size) / float64(len(heights))
	for i, h := range heights {
		r.Bar(waveform.Rect{X: float64(i)*w + 2, Y: (size - h) / 2, W: w - 4, H: h}, waveform.BarGradient, waveform.BarGlow)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.Image(r.Image())); err != nil {
		return nil
	}
	return buf.Bytes()
}
