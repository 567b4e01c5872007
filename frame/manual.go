package frame

import (
	"sync"
	"time"
)

// Manual is a Scheduler and Poster driven by hand, for tests and headless
// rendering. Posted tasks run only when the caller runs them.
type Manual struct {
	frames []pending
	firing []pending
	nextID ID

	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

func NewManual() *Manual { return &Manual{wake: make(chan struct{}, 1)} }

func (m *Manual) Post(fn func()) bool {
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// RunTasks runs queued tasks, including ones they post, and returns how
// many ran.
func (m *Manual) RunTasks() int {
	n := 0
	for {
		m.mu.Lock()
		batch := m.tasks
		m.tasks = nil
		m.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}

// Await waits up to d for a task to be posted, then runs the queue. It
// reports whether anything ran.
func (m *Manual) Await(d time.Duration) bool {
	deadline := time.After(d)
	for {
		if m.RunTasks() > 0 {
			return true
		}
		select {
		case <-m.wake:
		case <-deadline:
			return m.RunTasks() > 0
		}
	}
}

func (m *Manual) RequestFrame(fn func(now time.Time)) ID {
	m.nextID++
	m.frames = append(m.frames, pending{id: m.nextID, fn: fn})
	return m.nextID
}

func (m *Manual) CancelFrame(id ID) {
	for i, p := range m.frames {
		if p.id == id {
			m.frames = append(m.frames[:i], m.frames[i+1:]...)
			return
		}
	}
	// Cancelled while its batch is firing.
	for i := range m.firing {
		if m.firing[i].id == id {
			m.firing[i].fn = nil
			return
		}
	}
}

// Pending returns the number of frame callbacks waiting to fire.
func (m *Manual) Pending() int { return len(m.frames) }

// Step runs queued tasks, then fires every pending callback once, as a
// display refresh would.
func (m *Manual) Step() {
	m.RunTasks()
	m.firing = m.frames
	m.frames = nil
	now := time.Now()
	for i := range m.firing {
		if fn := m.firing[i].fn; fn != nil {
			fn(now)
		}
	}
	m.firing = nil
}

// StepN calls Step n times.
func (m *Manual) StepN(n int) {
	for i := 0; i < n; i++ {
		m.Step()
	}
}
