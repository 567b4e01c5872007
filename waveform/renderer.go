package waveform

import (
	"time"

	"transcribo/frame"
)

// Renderer redraws its canvas once per frame. Inputs are set from the frame
// loop goroutine; the renderer never holds transcript state.
type Renderer struct {
	canvas Canvas
	sched  frame.Scheduler
	bars   int

	active   bool
	loudness float64
	clock    float64
	heights  []float64

	running bool
	gen     uint64
	frameID frame.ID
	onFrame func()
}

func NewRenderer(canvas Canvas, sched frame.Scheduler, bars int) *Renderer {
	if bars <= 0 {
		bars = DefaultBars
	}
	return &Renderer{canvas: canvas, sched: sched, bars: bars}
}

// OnFrame registers fn to run after every drawn frame.
func (r *Renderer) OnFrame(fn func()) { r.onFrame = fn }

func (r *Renderer) SetActive(active bool) { r.active = active }

func (r *Renderer) SetLoudness(l float64) { r.loudness = max(0, min(1, l)) }

func (r *Renderer) Active() bool   { return r.active }
func (r *Renderer) Running() bool  { return r.running }
func (r *Renderer) Clock() float64 { return r.clock }
func (r *Renderer) Canvas() Canvas { return r.canvas }

// Start begins the draw loop. Starting a running renderer is a no-op.
func (r *Renderer) Start() {
	if r.running {
		return
	}
	r.running = true
	r.gen++
	r.schedule(r.gen)
}

func (r *Renderer) schedule(gen uint64) {
	r.frameID = r.sched.RequestFrame(func(time.Time) {
		if gen != r.gen {
			return
		}
		r.Draw()
		r.schedule(gen)
	})
}

// Stop cancels the pending frame.
func (r *Renderer) Stop() {
	if !r.running {
		return
	}
	r.running = false
	r.gen++
	r.sched.CancelFrame(r.frameID)
}

// Draw renders a single frame and, while active, advances the clock.
func (r *Renderer) Draw() {
	w, h := r.canvas.Size()
	r.canvas.Clear(Background)

	if r.active {
		r.heights = Bars(r.clock, r.loudness, r.bars, r.heights)
		for i, bh := range r.heights {
			r.canvas.Bar(Layout(i, r.bars, bh, w, h), BarGradient, BarGlow)
		}
		r.clock += TimeStep
	} else {
		r.canvas.HLine(float64(h)/2, LineWidth, Centerline)
	}

	if r.onFrame != nil {
		r.onFrame()
	}
}
