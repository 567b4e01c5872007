// Package hotkey exposes the global Ctrl+Shift+Space shortcut that starts
// and stops recording.
package hotkey

import (
	"context"
	"time"
)

// Combo is the shortcut as shown to the user.
const Combo = "Ctrl+Shift+Space"

// DefaultHold is how long the combo must be held before its release stops
// the recording.
const DefaultHold = 400 * time.Millisecond

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Action int

const (
	Start Action = iota
	Stop
)

func (a Action) String() string {
	if a == Start {
		return "start"
	}
	return "stop"
}

// Watch turns presses into Start/Stop actions. A tap starts recording and
// the next press stops it on release; holding past hold records only while
// held. The channel closes when ctx is done.
func Watch(ctx context.Context, hk Hotkey, hold time.Duration) <-chan Action {
	out := make(chan Action, 1)
	go func() {
		defer close(out)
		w := watcher{ctx: ctx, hk: hk, out: out}
		for {
			if !w.press(hold) {
				return
			}
		}
	}()
	return out
}

type watcher struct {
	ctx context.Context
	hk  Hotkey
	out chan<- Action
}

// press handles one recording from the first keydown to the action that
// ends it.
func (w *watcher) press(hold time.Duration) bool {
	if !w.wait(w.hk.Keydown()) || !w.emit(Start) {
		return false
	}
	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-w.ctx.Done():
		return false
	case <-timer.C:
		return w.wait(w.hk.Keyup()) && w.emit(Stop)
	case <-w.hk.Keyup():
	}
	// Tapped: the next full press stops.
	return w.wait(w.hk.Keydown()) && w.wait(w.hk.Keyup()) && w.emit(Stop)
}

func (w *watcher) wait(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-w.ctx.Done():
		return false
	}
}

func (w *watcher) emit(a Action) bool {
	select {
	case w.out <- a:
		return true
	case <-w.ctx.Done():
		return false
	}
}
