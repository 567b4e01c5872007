package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"transcribo/clipboard"
	"transcribo/enrich"
	"transcribo/live"
	"transcribo/log"
	"transcribo/recognition"
	"transcribo/view"
)

// controls is what the TUI drives. *live.Controller plus a canvas resize
// hook satisfies it.
type controls interface {
	Toggle()
	Translate()
	Enhance()
	Clear()
	CycleLanguage(delta int)
	NextTab(delta int)
	Resize(cols, rows int)
}

const (
	waveRows   = 6
	noticeTime = 5 * time.Second
)

type tuiModel struct {
	ctrl     controls
	snap     live.Snapshot
	wave     string
	level    float64
	notice   enrich.Notice
	noticeAt time.Time
	silence  *silenceMonitor
	noVoice  bool
	now      func() time.Time
	saveDir  string

	width, height int
}

func newTUIModel(ctrl controls, autoStop bool) tuiModel {
	return tuiModel{
		ctrl:    ctrl,
		silence: newSilenceMonitor(autoStop),
		now:     time.Now,
		saveDir: ".",
	}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func scheduleSilenceTick() tea.Cmd {
	return tea.Tick(silenceTick, func(time.Time) tea.Msg { return silenceTickMsg{} })
}

func (m tuiModel) Init() tea.Cmd {
	return scheduleSilenceTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ctrl.Resize(msg.Width, waveRows)

	case tea.KeyMsg:
		return m.key(msg)

	case SnapshotMsg:
		if msg.Snapshot.Recording && !m.snap.Recording {
			m.silence.Reset()
			m.noVoice = false
		}
		m.snap = msg.Snapshot

	case NoticeMsg:
		m.setNotice(msg.Notice)

	case WaveMsg:
		m.wave = msg.Frame
		m.level = msg.Level

	case silenceTickMsg:
		if m.snap.Recording && m.snap.MicErr == nil {
			switch m.silence.Tick(m.level) {
			case SilenceWarn:
				m.noVoice = true
			case SilenceWarnClear:
				m.noVoice = false
			case SilenceAutoStop:
				m.noVoice = false
				m.ctrl.Toggle()
				m.setNotice(enrich.Notice{Level: enrich.Info, Text: "Stopped after 30s without voice"})
			}
		}
		return m, scheduleSilenceTick()
	}
	return m, nil
}

func (m tuiModel) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ", "r":
		m.ctrl.Toggle()
	case "t":
		m.ctrl.Translate()
	case "e":
		m.ctrl.Enhance()
	case "c":
		m.ctrl.Clear()
		m.noVoice = false
	case "tab":
		m.ctrl.NextTab(1)
	case "shift+tab":
		m.ctrl.NextTab(-1)
	case "]":
		m.ctrl.CycleLanguage(1)
	case "[":
		m.ctrl.CycleLanguage(-1)
	case "y":
		m.copyActive()
	case "s":
		m.saveActive()
	}
	return m, nil
}

func (m *tuiModel) setNotice(n enrich.Notice) {
	m.notice = n
	m.noticeAt = m.now()
}

func (m tuiModel) activeText() string {
	text, _ := view.Body(m.snap.Texts, m.snap.Active)
	return text
}

func (m *tuiModel) copyActive() {
	if err := clipboard.Copy(m.activeText()); err != nil {
		m.setNotice(enrich.Notice{Level: enrich.Warning, Text: "Copy failed: " + err.Error()})
		return
	}
	m.setNotice(enrich.Notice{Level: enrich.Info, Text: "Copied " + view.Label(m.snap.Texts, m.snap.Active)})
}

func (m *tuiModel) saveActive() {
	text := strings.TrimSpace(m.activeText())
	if text == "" {
		m.setNotice(enrich.Notice{Level: enrich.Info, Text: "Nothing to save yet"})
		return
	}
	name := fmt.Sprintf("transcribo-%s-%s.txt",
		strings.ToLower(m.snap.Active.String()), m.now().Format("20060102-150405"))
	path := filepath.Join(m.saveDir, name)
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		log.Errorf("save %s: %v", path, err)
		m.setNotice(enrich.Notice{Level: enrich.Error, Text: "Save failed: " + err.Error()})
		return
	}
	m.setNotice(enrich.Notice{Level: enrich.Info, Text: "Saved " + path})
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	interimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	tabStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	activeTab    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("#00FF41")).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = helpStyle.Bold(true)
)

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.statusLine() + "\n")
	if m.wave != "" {
		b.WriteString(m.wave + "\n")
	}
	b.WriteString(m.tabLine() + "\n\n")

	used := strings.Count(b.String(), "\n") + 3
	body := m.bodyLines(max(10, m.width-2))
	if room := m.height - used; room > 0 && len(body) > room {
		body = body[len(body)-room:]
	}
	for _, l := range body {
		b.WriteString(l + "\n")
	}

	pad := m.height - strings.Count(b.String(), "\n") - 2
	if pad > 0 {
		b.WriteString(strings.Repeat("\n", pad))
	}
	b.WriteString(m.noticeLine() + "\n")
	b.WriteString(helpLine())
	return b.String()
}

func (m tuiModel) statusLine() string {
	var parts []string
	switch m.snap.State {
	case recognition.Recording:
		elapsed := m.now().Sub(m.snap.Started).Seconds()
		parts = append(parts, recStyle.Render(fmt.Sprintf("● REC %.1fs", elapsed)))
	case recognition.Stopped:
		parts = append(parts, idleStyle.Render("■ STOPPED"))
	default:
		parts = append(parts, idleStyle.Render("○ STANDBY"))
	}
	if m.noVoice {
		parts = append(parts, warnStyle.Render("⚠ no voice detected"))
	}
	if m.snap.MicErr != nil && m.snap.Recording {
		parts = append(parts, warnStyle.Render("⚠ no microphone"))
	}
	if m.snap.RecErr != nil {
		parts = append(parts, errStyle.Render("recognition unavailable"))
	}

	info := m.snap.Engine
	if m.snap.Device != "" {
		info += " | mic: " + m.snap.Device
	}
	info += " | → " + m.snap.TargetLanguage
	parts = append(parts, dimStyle.Render("["+info+"]"))

	if m.snap.LoadingFile != "" {
		parts = append(parts, dimStyle.Render("transcribing "+filepath.Base(m.snap.LoadingFile)+"…"))
	}
	return strings.Join(parts, "  ")
}

func (m tuiModel) tabLine() string {
	var tabs []string
	for _, t := range m.snap.Tabs {
		label := view.Label(m.snap.Texts, t)
		if t == m.snap.Active {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	var pending []string
	if m.snap.Pipeline.Translate == enrich.Pending {
		pending = append(pending, "translating…")
	}
	if m.snap.Pipeline.Enhance == enrich.Pending {
		pending = append(pending, "enhancing…")
	}
	if m.snap.Pipeline.Fallback.Any() {
		pending = append(pending, "fallback output")
	}
	if len(pending) > 0 {
		line += "  " + dimStyle.Render(strings.Join(pending, ", "))
	}
	return line
}

func (m tuiModel) bodyLines(width int) []string {
	text, interim := view.Body(m.snap.Texts, m.snap.Active)
	if text == "" && interim == "" {
		hint := "Press space to start recording"
		if m.snap.Recording {
			hint = "Listening…"
		}
		return []string{idleStyle.Render(hint)}
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		for _, l := range wrapText(para, width) {
			lines = append(lines, textStyle.Render(l))
		}
	}
	if interim != "" {
		for _, l := range wrapText(interim, width) {
			lines = append(lines, interimStyle.Render(l))
		}
	}
	return lines
}

func (m tuiModel) noticeLine() string {
	if m.notice.Text == "" || m.now().Sub(m.noticeAt) > noticeTime {
		return ""
	}
	switch m.notice.Level {
	case enrich.Error:
		return errStyle.Render("✗ " + m.notice.Text)
	case enrich.Warning:
		return warnStyle.Render("⚠ " + m.notice.Text)
	default:
		return infoStyle.Render("• " + m.notice.Text)
	}
}

func helpLine() string {
	keys := []struct{ key, desc string }{
		{"space", "record"}, {"t", "translate"}, {"e", "enhance"}, {"tab", "view"},
		{"[ ]", "language"}, {"y", "copy"}, {"s", "save"}, {"c", "clear"}, {"q", "quit"},
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = helpKeyStyle.Render(k.key) + helpStyle.Render(" "+k.desc)
	}
	return strings.Join(parts, helpStyle.Render(" · "))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len([]rune(text)) > width {
		r := []rune(text)
		splitAt := width
		for i := width; i > 0; i-- {
			if r[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(r[:splitAt]))
		text = strings.TrimLeft(string(r[splitAt:]), " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
