package waveform

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Text is a terminal canvas. It exposes a logical width×height surface and
// samples it onto cols×rows cells, two vertical pixels per cell using the
// upper half block.
type Text struct {
	width, height int
	cols, rows    int
	pix           []color.RGBA // cols × rows*2
	styles        map[[2]color.RGBA]lipgloss.Style
}

func NewText(width, height, cols, rows int) *Text {
	t := &Text{width: width, height: height, styles: make(map[[2]color.RGBA]lipgloss.Style)}
	t.Resize(cols, rows)
	return t
}

// Resize changes the cell grid. The logical size is unchanged.
func (t *Text) Resize(cols, rows int) {
	cols, rows = max(1, cols), max(1, rows)
	if cols == t.cols && rows == t.rows {
		return
	}
	t.cols, t.rows = cols, rows
	t.pix = make([]color.RGBA, cols*rows*2)
}

func (t *Text) Size() (int, int) { return t.width, t.height }

func (t *Text) Clear(c color.RGBA) {
	for i := range t.pix {
		t.pix[i] = c
	}
}

func (t *Text) pixelH() float64 { return float64(t.height) / float64(t.rows*2) }
func (t *Text) pixelW() float64 { return float64(t.width) / float64(t.cols) }

// columns covered by [x0,x1): cells whose centre lies inside.
func (t *Text) columns(x0, x1 float64) (int, int) {
	pw := t.pixelW()
	a := max(0, int(math.Ceil(x0/pw-0.5)))
	b := min(t.cols, int(math.Ceil(x1/pw-0.5)))
	return a, b
}

// pixel rows overlapped by [y0,y1).
func (t *Text) pixelRows(y0, y1 float64) (int, int) {
	ph := t.pixelH()
	a := max(0, int(math.Floor(y0/ph)))
	b := min(t.rows*2, int(math.Ceil(y1/ph)))
	return a, b
}

func (t *Text) Bar(rc Rect, g Gradient, glow Glow) {
	if rc.W <= 0 || rc.H <= 0 {
		return
	}
	if glow.Blur > 0 {
		dim := lerp(Background, glow.Color, 0.25)
		gx0, gx1 := t.columns(rc.X-glow.Blur/2, rc.X+rc.W+glow.Blur/2)
		gy0, gy1 := t.pixelRows(rc.Y-glow.Blur/2, rc.Y+rc.H+glow.Blur/2)
		for y := gy0; y < gy1; y++ {
			for x := gx0; x < gx1; x++ {
				if t.pix[y*t.cols+x] == Background {
					t.pix[y*t.cols+x] = dim
				}
			}
		}
	}

	x0, x1 := t.columns(rc.X, rc.X+rc.W)
	y0, y1 := t.pixelRows(rc.Y, rc.Y+rc.H)
	ph := t.pixelH()
	for y := y0; y < y1; y++ {
		c := g.At(((float64(y)+0.5)*ph - rc.Y) / rc.H)
		for x := x0; x < x1; x++ {
			t.pix[y*t.cols+x] = c
		}
	}
}

func (t *Text) HLine(y, _ float64, c color.RGBA) {
	row := min(t.rows*2-1, max(0, int(y/t.pixelH())))
	for x := 0; x < t.cols; x++ {
		t.pix[row*t.cols+x] = c
	}
}

// Render returns the grid as rows of styled half-block cells.
func (t *Text) Render() string {
	var b strings.Builder
	for row := 0; row < t.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		top := t.pix[row*2*t.cols:]
		bot := t.pix[(row*2+1)*t.cols:]
		for x := 0; x < t.cols; x++ {
			b.WriteString(t.style(top[x], bot[x]).Render("▀"))
		}
	}
	return b.String()
}

func (t *Text) style(top, bot color.RGBA) lipgloss.Style {
	key := [2]color.RGBA{top, bot}
	if s, ok := t.styles[key]; ok {
		return s
	}
	s := lipgloss.NewStyle().
		Foreground(lipgloss.Color(hex(top))).
		Background(lipgloss.Color(hex(bot)))
	t.styles[key] = s
	return s
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
