// Package clipboard copies transcript text to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var (
	ErrEmpty       = errors.New("nothing to copy")
	ErrUnsupported = errors.New("no clipboard utility found")
)

// Available reports whether a clipboard backend exists. On linux this needs
// xclip, xsel or wl-copy.
func Available() bool { return !cb.Unsupported }

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

// Copy writes text with surrounding whitespace trimmed.
func Copy(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}
