// Package recognition turns a continuous speech-recognition engine into an
// append-only transcript plus a live interim fragment.
package recognition

import (
	"context"
	"errors"
)

// ErrRecognitionUnavailable reports that no engine can run on this host.
var ErrRecognitionUnavailable = errors.New("speech recognition unavailable")

type State int

const (
	Idle State = iota
	Recording
	Stopped
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Result is one recognition hypothesis. A later result for the same Index
// revises it until a Final one closes the index.
type Result struct {
	Index int
	Text  string
	Final bool
}

// Event is one delivery from an engine. Err carries a non-fatal engine
// failure.
type Event struct {
	Results []Result
	Err     error
}

type Config struct {
	Language   string
	Model      string
	SampleRate int
	Channels   int
}

type Engine interface {
	Name() string
	// Available reports why the engine cannot run, or nil.
	Available() error
	// Open starts a stream without blocking on the network.
	Open(ctx context.Context, cfg Config) (Stream, error)
}

type Stream interface {
	// Feed hands captured PCM16 audio to the engine. Engines that do not
	// consume audio ignore it. Safe to call from any goroutine.
	Feed(pcm []byte)
	// Events is closed once the stream ends.
	Events() <-chan Event
	Close() error
}

// CaptureSession is a copy of the session's transcript state.
type CaptureSession struct {
	State   State
	Raw     string
	Interim string
}
