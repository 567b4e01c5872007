// Package live runs one capture session: microphone level, waveform,
// incremental recognition and the enrichment stages, all owned by a single
// frame loop.
package live

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"transcribo/audio"
	"transcribo/enrich"
	"transcribo/frame"
	"transcribo/log"
	"transcribo/recognition"
	"transcribo/view"
	"transcribo/waveform"
)

// Loop is the event loop the controller runs on.
type Loop interface {
	frame.Scheduler
	frame.Poster
}

// FileTranscriber uploads recorded media for transcription.
type FileTranscriber interface {
	Transcribe(ctx context.Context, path, target string) (*enrich.TranscribeResponse, error)
}

// Sink receives everything the presentation shows. Calls arrive on the
// loop goroutine and must not block for long.
type Sink interface {
	Changed(Snapshot)
	Notice(enrich.Notice)
	// Frame follows every waveform redraw.
	Frame(level float64)
}

type Snapshot struct {
	SessionID string
	State     recognition.State
	Recording bool
	Started   time.Time

	Texts    view.Texts
	Tabs     []view.Tab
	Active   view.Tab
	Pipeline enrich.State
	Results  []enrich.Result

	TargetLanguage string
	Device         string
	Engine         string
	MicErr         error
	RecErr         error
	LoadingFile    string
}

type Deps struct {
	Capture        audio.CaptureDevice
	Engine         recognition.Engine
	Recognition    recognition.Config
	Canvas         waveform.Canvas
	Bars           int
	Service        enrich.Service
	Files          FileTranscriber
	Sink           Sink
	TargetLanguage string
}

type Controller struct {
	ctx  context.Context
	loop Loop
	sink Sink

	rec      *recognition.Session
	sampler  *audio.Sampler
	renderer *waveform.Renderer
	pipeline *enrich.Pipeline
	service  enrich.Service
	files    FileTranscriber

	target    string
	active    view.Tab
	sessionID string
	started   time.Time
	level     float64
	micErr    error
	recErr    error
	recWarned bool
	loading   string
	fileGen   uint64

	current atomic.Pointer[Snapshot]
}

func New(ctx context.Context, loop Loop, d Deps) *Controller {
	target := d.TargetLanguage
	if target == "" {
		target = enrich.DefaultLanguage
	}
	c := &Controller{
		ctx:      ctx,
		loop:     loop,
		sink:     d.Sink,
		pipeline: enrich.NewPipeline(),
		service:  d.Service,
		files:    d.Files,
		target:   enrich.CanonicalLanguage(target),
	}

	c.rec = recognition.NewSession(d.Engine, d.Recognition, loop)
	c.rec.OnChange(func(recognition.CaptureSession) { c.publish() })
	c.rec.OnError(func(err error) {
		c.notice(enrich.Warning, "Recognition error: "+err.Error())
	})
	if err := c.rec.Available(); err != nil {
		c.recErr = err
	}

	c.renderer = waveform.NewRenderer(d.Canvas, loop, d.Bars)
	c.renderer.OnFrame(func() {
		if c.sink != nil {
			c.sink.Frame(c.level)
		}
	})

	c.sampler = audio.NewSampler(d.Capture, loop, func(l float64) {
		c.level = l
		c.renderer.SetLoudness(l)
	})
	c.sampler.SetSink(c.rec.Feed)
	return c
}

// Run starts the idle waveform and publishes the first snapshot.
func (c *Controller) Run() {
	c.loop.Post(func() {
		c.renderer.Start()
		if c.recErr != nil {
			log.Warnf("%v", c.recErr)
		}
		c.publish()
	})
}

// Current returns the latest published snapshot.
func (c *Controller) Current() Snapshot {
	if s := c.current.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

func (c *Controller) Toggle() {
	c.loop.Post(func() {
		if c.rec.State() == recognition.Recording {
			c.stop()
		} else {
			c.start()
		}
	})
}

func (c *Controller) StartRecording() { c.loop.Post(c.start) }
func (c *Controller) StopRecording()  { c.loop.Post(c.stop) }
func (c *Controller) Translate()      { c.loop.Post(c.translate) }
func (c *Controller) Enhance()        { c.loop.Post(c.enhance) }
func (c *Controller) Clear()          { c.loop.Post(c.clear) }

func (c *Controller) SetTargetLanguage(lang string) {
	c.loop.Post(func() {
		c.target = enrich.CanonicalLanguage(lang)
		c.publish()
	})
}

func (c *Controller) CycleLanguage(delta int) {
	c.loop.Post(func() {
		c.target = enrich.NextLanguage(c.target, delta)
		c.publish()
	})
}

func (c *Controller) SelectTab(t view.Tab) {
	c.loop.Post(func() {
		c.active = t
		c.publish()
	})
}

func (c *Controller) NextTab(delta int) {
	c.loop.Post(func() {
		c.active = view.Next(c.texts(), view.Resolve(c.texts(), c.active), delta)
		c.publish()
	})
}

// Shutdown stops any recording and the waveform loop, and waits for it.
func (c *Controller) Shutdown() {
	done := make(chan struct{})
	if !c.loop.Post(func() {
		c.stop()
		c.renderer.Stop()
		close(done)
	}) {
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

// LoadFile transcribes a recorded file and replaces the current transcript
// and enrichment outputs with the service's results.
func (c *Controller) LoadFile(path string) {
	c.loop.Post(func() {
		if c.files == nil {
			c.notice(enrich.Error, "File transcription is not configured")
			return
		}
		if c.rec.State() == recognition.Recording {
			c.notice(enrich.Info, "Stop recording before loading a file")
			return
		}
		c.fileGen++
		gen := c.fileGen
		target := c.target
		c.loading = path
		c.publish()

		go func() {
			resp, err := c.files.Transcribe(c.ctx, path, target)
			c.loop.Post(func() {
				if gen != c.fileGen {
					return
				}
				c.loading = ""
				if err != nil {
					log.Errorf("transcribe %s: %v", path, err)
					c.notice(enrich.Error, "Transcription failed: "+err.Error())
					c.publish()
					return
				}
				if !resp.Success {
					c.notice(enrich.Error, "Transcription failed: "+resp.Error)
					c.publish()
					return
				}
				c.rec.Load(resp.Transcript)
				c.active = view.Original
				c.apply(c.pipeline.LoadTranscription(resp, target))
			})
		}()
	})
}

func (c *Controller) start() {
	if c.rec.State() == recognition.Recording {
		return
	}
	if err := c.rec.Start(c.ctx); err != nil {
		if errors.Is(err, recognition.ErrRecognitionUnavailable) {
			c.recErr = err
			if !c.recWarned {
				c.recWarned = true
				c.notice(enrich.Error, "Speech recognition is unavailable: recording is disabled")
			}
			log.Warnf("%v", err)
		} else {
			c.notice(enrich.Error, "Could not start recognition: "+err.Error())
		}
		c.publish()
		return
	}
	c.recErr = nil
	c.sessionID = uuid.NewString()
	c.started = time.Now()

	c.micErr = c.sampler.Start()
	if c.micErr != nil {
		log.Warnf("%v", c.micErr)
		c.notice(enrich.Warning, "Microphone unavailable: the waveform stays idle")
	}
	c.renderer.SetActive(c.sampler.Active())
	log.SessionStart(c.sessionID, c.rec.EngineName(), c.sampler.DeviceName())
	c.publish()
}

// stop cancels the sampling and drawing loops before the capture device is
// released, then ends recognition and restarts the idle waveform.
func (c *Controller) stop() {
	if c.rec.State() != recognition.Recording {
		return
	}
	c.renderer.Stop()
	c.sampler.Stop()
	c.rec.Stop()

	c.level = 0
	c.renderer.SetActive(false)
	c.renderer.SetLoudness(0)
	c.renderer.Start()

	snap := c.rec.Snapshot()
	log.SessionEnd(c.sessionID, len(snap.Raw), time.Since(c.started))
	c.publish()
}

func (c *Controller) clear() {
	c.rec.Reset()
	c.pipeline.Reset()
	c.active = view.Original
	c.loading = ""
	c.fileGen++
	c.publish()
}

func (c *Controller) translate() {
	req, err := c.pipeline.BeginTranslate(c.rec.Snapshot().Raw, c.target)
	if err != nil {
		c.beginFailed(err, "translate")
		return
	}
	c.publish()
	c.pipeline.Run(c.ctx, c.service, c.loop, req, c.apply)
}

func (c *Controller) enhance() {
	req, err := c.pipeline.BeginEnhance(c.rec.Snapshot().Raw, c.target)
	if err != nil {
		c.beginFailed(err, "enhance")
		return
	}
	c.publish()
	c.pipeline.Run(c.ctx, c.service, c.loop, req, c.apply)
}

func (c *Controller) beginFailed(err error, what string) {
	switch {
	case errors.Is(err, enrich.ErrEmptyInput):
		c.notice(enrich.Info, "Nothing to "+what+" yet")
	case errors.Is(err, enrich.ErrNoOpLanguage):
		c.notice(enrich.Info, "Pick a target language other than "+c.target+" to translate")
	}
}

func (c *Controller) apply(tr enrich.Transition) {
	if tr.Stale {
		return
	}
	if tr.ShowTranslated {
		c.active = view.Translated
	}
	if tr.Notice != nil {
		c.notice(tr.Notice.Level, tr.Notice.Text)
	}
	c.publish()
}

func (c *Controller) notice(level enrich.Level, text string) {
	if c.sink != nil {
		c.sink.Notice(enrich.Notice{Level: level, Text: text})
	}
}

func (c *Controller) texts() view.Texts {
	snap := c.rec.Snapshot()
	return view.FromState(snap.Raw, snap.Interim, c.pipeline.State())
}

func (c *Controller) publish() {
	rs := c.rec.Snapshot()
	texts := c.texts()
	snap := &Snapshot{
		SessionID:      c.sessionID,
		State:          rs.State,
		Recording:      rs.State == recognition.Recording,
		Started:        c.started,
		Texts:          texts,
		Tabs:           view.Available(texts),
		Active:         view.Resolve(texts, c.active),
		Pipeline:       c.pipeline.State(),
		Results:        c.pipeline.Results(c.target),
		TargetLanguage: c.target,
		Device:         c.sampler.DeviceName(),
		Engine:         c.rec.EngineName(),
		MicErr:         c.micErr,
		RecErr:         c.recErr,
		LoadingFile:    c.loading,
	}
	c.current.Store(snap)
	if c.sink != nil {
		c.sink.Changed(*snap)
	}
}
