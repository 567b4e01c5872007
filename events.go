package main

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"transcribo/enrich"
	"transcribo/live"
	"transcribo/waveform"
)

// TUI message types
type SnapshotMsg struct{ Snapshot live.Snapshot }
type NoticeMsg struct{ Notice enrich.Notice }
type WaveMsg struct {
	Frame string
	Level float64
}
type silenceTickMsg struct{}

// tuiSink forwards controller output to the Bubble Tea program. It runs on
// the frame loop, which also owns the canvas it renders.
type tuiSink struct {
	canvas  *waveform.Text
	program atomic.Pointer[tea.Program]
}

func (s *tuiSink) send(msg tea.Msg) {
	if p := s.program.Load(); p != nil {
		p.Send(msg)
	}
}

func (s *tuiSink) Changed(snap live.Snapshot) { s.send(SnapshotMsg{snap}) }
func (s *tuiSink) Notice(n enrich.Notice)     { s.send(NoticeMsg{n}) }

func (s *tuiSink) Frame(level float64) {
	s.send(WaveMsg{Frame: s.canvas.Render(), Level: level})
}
