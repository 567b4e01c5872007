package waveform

import (
	"image"
	"image/color"
	"math"
)

// Raster draws onto an RGBA image.
type Raster struct {
	img *image.RGBA
}

func NewRaster(w, h int) *Raster {
	return &Raster{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (r *Raster) Image() *image.RGBA { return r.img }

func (r *Raster) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

func (r *Raster) Clear(c color.RGBA) {
	pix := r.img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
}

func (r *Raster) Bar(rc Rect, g Gradient, glow Glow) {
	if rc.W <= 0 || rc.H <= 0 {
		return
	}
	if glow.Blur > 0 {
		r.glow(rc, glow)
	}

	b := r.img.Bounds()
	x0, x1 := clampSpan(rc.X, rc.X+rc.W, b.Dx())
	y0, y1 := clampSpan(rc.Y, rc.Y+rc.H, b.Dy())
	for y := y0; y < y1; y++ {
		c := g.At((float64(y) + 0.5 - rc.Y) / rc.H)
		for x := x0; x < x1; x++ {
			r.img.SetRGBA(x, y, c)
		}
	}
}

// glow blends a halo that fades linearly with distance from the rectangle.
func (r *Raster) glow(rc Rect, glow Glow) {
	b := r.img.Bounds()
	x0, x1 := clampSpan(rc.X-glow.Blur, rc.X+rc.W+glow.Blur, b.Dx())
	y0, y1 := clampSpan(rc.Y-glow.Blur, rc.Y+rc.H+glow.Blur, b.Dy())
	for y := y0; y < y1; y++ {
		cy := float64(y) + 0.5
		dy := math.Max(0, math.Max(rc.Y-cy, cy-(rc.Y+rc.H)))
		for x := x0; x < x1; x++ {
			cx := float64(x) + 0.5
			dx := math.Max(0, math.Max(rc.X-cx, cx-(rc.X+rc.W)))
			d := math.Hypot(dx, dy)
			if d == 0 || d > glow.Blur {
				continue
			}
			a := 1 - d/glow.Blur
			r.blend(x, y, glow.Color, 0.6*a*a)
		}
	}
}

func (r *Raster) blend(x, y int, c color.RGBA, alpha float64) {
	dst := r.img.RGBAAt(x, y)
	r.img.SetRGBA(x, y, lerp(dst, c, alpha))
}

func (r *Raster) HLine(y, width float64, c color.RGBA) {
	w, h := r.Size()
	y0, y1 := clampSpan(y-width/2, y+width/2, h)
	for py := y0; py < y1; py++ {
		for x := 0; x < w; x++ {
			r.img.SetRGBA(x, py, c)
		}
	}
}

func clampSpan(lo, hi float64, limit int) (int, int) {
	a := max(0, int(math.Floor(lo)))
	b := min(limit, int(math.Ceil(hi)))
	if b < a {
		b = a
	}
	return a, b
}
