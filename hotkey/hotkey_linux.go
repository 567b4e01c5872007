//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Linux reads key events straight from evdev so the shortcut works under
// both X11 and Wayland. The user must be in the input group.

const (
	evKey = 1

	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLShift = 42
	keyRShift = 54
	keySpace  = 57

	inputEventSize = 24
)

var errNoKeyboard = errors.New("no readable keyboard device (add yourself to the input group: sudo usermod -aG input $USER)")

type evdevHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	mu    sync.Mutex
	files []*os.File
}

func New() Hotkey {
	return &evdevHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	paths, err := keyboards()
	if err != nil {
		return fmt.Errorf("scan input devices: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.read(f)
	}
	if len(h.files) == 0 {
		return errNoKeyboard
	}
	return nil
}

// read ends when Unregister closes f.
func (h *evdevHotkey) read(f *os.File) {
	var st comboState
	buf := make([]byte, inputEventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			typ := binary.LittleEndian.Uint16(buf[i+16:])
			code := binary.LittleEndian.Uint16(buf[i+18:])
			value := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			if typ != evKey {
				continue
			}
			switch st.key(code, value) {
			case edgeDown:
				notify(h.keydown)
			case edgeUp:
				notify(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range h.files {
		f.Close()
	}
	h.files = nil
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

type edge int

const (
	edgeNone edge = iota
	edgeDown
	edgeUp
)

// comboState tracks modifier state for one keyboard. Key repeat (value 2)
// keeps a key held.
type comboState struct {
	ctrl, shift, space bool
}

func (s *comboState) key(code uint16, value int32) edge {
	down := value != 0
	switch code {
	case keyLCtrl, keyRCtrl:
		s.ctrl = down
	case keyLShift, keyRShift:
		s.shift = down
	case keySpace:
		switch {
		case down && !s.space && s.ctrl && s.shift:
			s.space = true
			return edgeDown
		case !down && s.space:
			s.space = false
			return edgeUp
		}
	}
	return edgeNone
}

func keyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join("/sys/class/input", name, "device", "capabilities", "key"))
		// Keyboards advertise a long key capability bitmap.
		if err == nil && len(strings.TrimSpace(string(caps))) > 10 {
			out = append(out, filepath.Join("/dev/input", name))
		}
	}
	return out, nil
}

// Diagnose reports whether the shortcut can be registered.
func Diagnose() (string, error) {
	paths, err := keyboards()
	if err != nil {
		return "", fmt.Errorf("scan input devices: %w", err)
	}
	for _, p := range paths {
		if f, err := os.Open(p); err == nil {
			f.Close()
			return fmt.Sprintf("%s via %s (%d keyboard(s))", Combo, p, len(paths)), nil
		}
	}
	if len(paths) == 0 {
		return "", errors.New("no keyboard devices found")
	}
	return "", errNoKeyboard
}
