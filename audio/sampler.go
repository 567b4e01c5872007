package audio

import (
	"fmt"
	"time"

	"transcribo/frame"
)

// Sampler publishes the microphone loudness once per frame while capture is
// active. All methods except the capture callback run on the frame loop.
type Sampler struct {
	capture  CaptureDevice
	analyser *Analyser
	sched    frame.Scheduler
	onLevel  func(float64)
	sink     func(pcm []byte)

	gen     uint64
	frameID frame.ID
	active  bool
	level   float64
	bins    []byte
}

// NewSampler returns a sampler over capture. capture may be nil, in which
// case Start reports ErrMicrophoneUnavailable.
func NewSampler(capture CaptureDevice, sched frame.Scheduler, onLevel func(float64)) *Sampler {
	return &Sampler{
		capture:  capture,
		analyser: NewAnalyser(),
		sched:    sched,
		onLevel:  onLevel,
	}
}

// SetSink forwards every captured buffer to fn, on the capture goroutine.
// Takes effect on the next Start.
func (s *Sampler) SetSink(fn func(pcm []byte)) { s.sink = fn }

func (s *Sampler) Active() bool   { return s.active }
func (s *Sampler) Level() float64 { return s.level }

func (s *Sampler) DeviceName() string {
	if s.capture == nil {
		return ""
	}
	return s.capture.DeviceName()
}

func (s *Sampler) Start() error {
	if s.active {
		return nil
	}
	if s.capture == nil {
		return fmt.Errorf("%w: no input device", ErrMicrophoneUnavailable)
	}

	analyser, sink := s.analyser, s.sink
	s.capture.SetCallback(func(data []byte, _ uint32) {
		analyser.Write(data)
		if sink != nil {
			sink(data)
		}
	})
	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		return fmt.Errorf("%w: %w", ErrMicrophoneUnavailable, err)
	}

	s.gen++
	s.active = true
	s.schedule(s.gen)
	return nil
}

func (s *Sampler) schedule(gen uint64) {
	s.frameID = s.sched.RequestFrame(func(time.Time) {
		if gen != s.gen {
			return
		}
		s.bins = s.analyser.ByteFrequencyData(s.bins)
		s.publish(Loudness(s.bins))
		s.schedule(gen)
	})
}

// Stop cancels the sampling loop before releasing the capture device, then
// publishes a loudness of 0.
func (s *Sampler) Stop() {
	if !s.active {
		return
	}
	s.active = false
	s.gen++
	s.sched.CancelFrame(s.frameID)

	s.capture.Stop()
	s.capture.ClearCallback()
	s.analyser.Reset()
	s.publish(0)
}

func (s *Sampler) publish(level float64) {
	s.level = level
	if s.onLevel != nil {
		s.onLevel(level)
	}
}
