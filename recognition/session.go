package recognition

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"transcribo/frame"
	"transcribo/log"
)

// Session owns one CaptureSession. Every method except Feed must run on the
// frame loop; engine events are posted back to it and applied in arrival
// order.
type Session struct {
	engine Engine
	cfg    Config
	poster frame.Poster

	onChange func(CaptureSession)
	onError  func(error)

	state     State
	raw       strings.Builder
	interim   string
	open      map[int]string
	finalized map[int]bool

	gen    uint64
	stream atomic.Pointer[streamRef]
}

type streamRef struct{ Stream }

// NewSession returns an idle session. engine may be nil, in which case Start
// reports ErrRecognitionUnavailable.
func NewSession(engine Engine, cfg Config, poster frame.Poster) *Session {
	return &Session{
		engine:    engine,
		cfg:       cfg,
		poster:    poster,
		open:      make(map[int]string),
		finalized: make(map[int]bool),
	}
}

func (s *Session) OnChange(fn func(CaptureSession)) { s.onChange = fn }
func (s *Session) OnError(fn func(error))           { s.onError = fn }

func (s *Session) EngineName() string {
	if s.engine == nil {
		return "none"
	}
	return s.engine.Name()
}

// Available reports whether Start can succeed.
func (s *Session) Available() error {
	if s.engine == nil {
		return fmt.Errorf("%w: no engine configured", ErrRecognitionUnavailable)
	}
	if err := s.engine.Available(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRecognitionUnavailable, s.engine.Name(), err)
	}
	return nil
}

// SetLanguage takes effect on the next Start.
func (s *Session) SetLanguage(lang string) { s.cfg.Language = lang }

// Start clears the transcript and begins recording. Starting while already
// recording is a no-op.
func (s *Session) Start(ctx context.Context) error {
	if s.state == Recording {
		return nil
	}
	if err := s.Available(); err != nil {
		return err
	}

	stream, err := s.engine.Open(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("open %s stream: %w", s.engine.Name(), err)
	}

	s.clear()
	s.state = Recording
	s.gen++
	s.stream.Store(&streamRef{stream})
	go s.pump(s.gen, stream)
	s.changed()
	return nil
}

func (s *Session) pump(gen uint64, stream Stream) {
	for ev := range stream.Events() {
		s.poster.Post(func() {
			if gen != s.gen {
				return
			}
			s.apply(ev)
		})
	}
}

// Stop freezes the transcript. Events still in flight are dropped.
func (s *Session) Stop() {
	if s.state != Recording {
		return
	}
	s.state = Stopped
	s.gen++
	if ref := s.stream.Swap(nil); ref != nil {
		go func() {
			if err := ref.Close(); err != nil {
				log.Warnf("close %s stream: %v", s.EngineName(), err)
			}
		}()
	}
	s.changed()
}

// Reset clears the transcript. The recording state is left as is, so a
// running recording keeps appending to the now empty transcript.
func (s *Session) Reset() {
	s.clear()
	if s.state == Stopped {
		s.state = Idle
	}
	s.changed()
}

// Load replaces the transcript with text from an external source, such as
// an uploaded file.
func (s *Session) Load(text string) {
	s.Stop()
	s.clear()
	if t := strings.TrimSpace(text); t != "" {
		s.raw.WriteString(t)
		s.raw.WriteByte(' ')
	}
	s.state = Stopped
	s.changed()
}

// Feed forwards captured audio to the active stream. Safe from any goroutine.
func (s *Session) Feed(pcm []byte) {
	if ref := s.stream.Load(); ref != nil {
		ref.Feed(pcm)
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) Snapshot() CaptureSession {
	return CaptureSession{State: s.state, Raw: s.raw.String(), Interim: s.interim}
}

func (s *Session) clear() {
	s.raw.Reset()
	s.interim = ""
	clear(s.open)
	clear(s.finalized)
}

func (s *Session) apply(ev Event) {
	if ev.Err != nil {
		log.RecognitionError(s.EngineName(), ev.Err)
		if s.onError != nil {
			s.onError(ev.Err)
		}
	}
	if len(ev.Results) == 0 {
		return
	}

	for _, r := range ev.Results {
		if s.finalized[r.Index] {
			continue
		}
		if !r.Final {
			s.open[r.Index] = r.Text
			continue
		}
		s.finalized[r.Index] = true
		delete(s.open, r.Index)
		if t := strings.TrimSpace(r.Text); t != "" {
			s.raw.WriteString(t)
			s.raw.WriteByte(' ')
			log.TranscriptText(t)
		}
	}
	s.interim = joinOpen(s.open)
	s.changed()
}

func joinOpen(open map[int]string) string {
	if len(open) == 0 {
		return ""
	}
	idx := make([]int, 0, len(open))
	for i := range open {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		if t := strings.TrimSpace(open[i]); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}
