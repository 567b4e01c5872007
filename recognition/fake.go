package recognition

import (
	"context"
	"sync"
)

// Fake is a scripted engine. Tests push events with Emit after Start.
type Fake struct {
	Err     error // returned by Available
	OpenErr error

	mu      sync.Mutex
	streams []*FakeStream
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Name() string     { return "fake" }
func (f *Fake) Available() error { return f.Err }

func (f *Fake) Open(_ context.Context, _ Config) (Stream, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	s := &FakeStream{events: make(chan Event, 64)}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

// Last returns the most recently opened stream.
func (f *Fake) Last() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *Fake) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

type FakeStream struct {
	events chan Event

	mu     sync.Mutex
	fed    int
	closed bool
}

func (s *FakeStream) Events() <-chan Event { return s.events }

func (s *FakeStream) Feed(pcm []byte) {
	s.mu.Lock()
	s.fed += len(pcm)
	s.mu.Unlock()
}

// Fed is the number of PCM bytes received.
func (s *FakeStream) Fed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fed
}

// Emit delivers one event. It is a no-op after Close.
func (s *FakeStream) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- ev
	}
}

// Results emits one event carrying rs.
func (s *FakeStream) Results(rs ...Result) { s.Emit(Event{Results: rs}) }

func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
