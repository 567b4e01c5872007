package enrich

import "strings"

// Languages are the translation targets offered to the user, in display
// order. English doubles as "leave the transcript as spoken".
var Languages = []string{
	"English", "Spanish", "French", "German", "Italian", "Portuguese",
	"Dutch", "Russian", "Chinese", "Japanese", "Korean", "Arabic",
	"Hindi", "Polish", "Swedish", "Norwegian", "Danish", "Finnish",
}

const DefaultLanguage = "Spanish"

// NoOpLanguage reports whether translating to target leaves the text as is.
func NoOpLanguage(target string) bool {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "", "english", "en", "auto", "original":
		return true
	}
	return false
}

// CanonicalLanguage maps target onto an entry of Languages, case-insensitively.
// Unknown names are returned trimmed.
func CanonicalLanguage(target string) string {
	t := strings.TrimSpace(target)
	for _, l := range Languages {
		if strings.EqualFold(l, t) {
			return l
		}
	}
	return t
}

// NextLanguage steps through Languages by delta, wrapping around.
func NextLanguage(current string, delta int) string {
	cur := CanonicalLanguage(current)
	n := len(Languages)
	for i, l := range Languages {
		if l == cur {
			return Languages[((i+delta)%n+n)%n]
		}
	}
	return Languages[0]
}
