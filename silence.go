package main

import "time"

const (
	silenceTick        = 100 * time.Millisecond
	silenceWarnAfter   = 8 * time.Second
	silenceAutoStopDur = 30 * time.Second
	speechLevel        = 0.35 // loudness at or above counts as voice
	speechMinRatio     = 0.10
	speechClearRatio   = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceAutoStop               // 30s without voice, autostop enabled
)

// silenceMonitor watches loudness samples taken every silenceTick while
// recording.
type silenceMonitor struct {
	warnAt   int
	windowSz int
	autoStop bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
}

func newSilenceMonitor(autoStop bool) *silenceMonitor {
	windowSz := int(silenceAutoStopDur / silenceTick)
	return &silenceMonitor{
		warnAt:   int(silenceWarnAfter / silenceTick),
		windowSz: windowSz,
		autoStop: autoStop,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) Reset() {
	m.ticks, m.speechCount, m.warned = 0, 0, false
	clear(m.window)
}

func (m *silenceMonitor) Warned() bool { return m.warned }

// ratio is the share of voiced samples among the last n.
func (m *silenceMonitor) ratio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := range n {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(level float64) SilenceEvent {
	voiced := level >= speechLevel
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = voiced
	if voiced {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.autoStop && m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoStop
	}
	return SilenceNone
}
