// Package frame provides the single-goroutine event loop that owns all live
// session state, plus a display-refresh style frame scheduler.
package frame

import (
	"context"
	"sync"
	"time"
)

const DefaultFPS = 60

// ID identifies a requested frame callback.
type ID uint64

// Scheduler is the display-refresh primitive: a requested callback fires
// once, on the next frame. Callers that want a loop request again from
// inside the callback.
type Scheduler interface {
	RequestFrame(fn func(now time.Time)) ID
	CancelFrame(id ID)
}

// Poster hands work to the loop goroutine.
type Poster interface {
	Post(fn func()) bool
}

type pending struct {
	id ID
	fn func(time.Time)
}

// Loop runs posted tasks and frame callbacks on one goroutine. RequestFrame
// and CancelFrame must only be called from that goroutine; Post is safe from
// anywhere.
type Loop struct {
	interval time.Duration

	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool

	frames []pending
	firing []pending
	nextID ID
}

func NewLoop(fps int) *Loop {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Loop{
		interval: time.Second / time.Duration(fps),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Interval is the time between frames.
func (l *Loop) Interval() time.Duration { return l.interval }

// Post queues fn to run on the loop. It reports false once the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it. Calling Do from the loop
// goroutine deadlocks.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) RequestFrame(fn func(now time.Time)) ID {
	l.nextID++
	l.frames = append(l.frames, pending{id: l.nextID, fn: fn})
	return l.nextID
}

func (l *Loop) CancelFrame(id ID) {
	for i, p := range l.frames {
		if p.id == id {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
	// Cancelled while its batch is firing.
	for i := range l.firing {
		if l.firing[i].id == id {
			l.firing[i].fn = nil
			return
		}
	}
}

// Run processes tasks and frames until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.runTasks()
		case now := <-ticker.C:
			l.runTasks()
			l.runFrames(now)
		}
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) runTasks() {
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

func (l *Loop) runFrames(now time.Time) {
	l.firing = l.frames
	l.frames = nil
	for i := range l.firing {
		if fn := l.firing[i].fn; fn != nil {
			fn(now)
		}
	}
	l.firing = nil
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.closed = true
	l.tasks = nil
	l.mu.Unlock()
	close(l.done)
}
