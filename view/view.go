// Package view projects session and enrichment state onto transcript tabs.
package view

import (
	"strings"

	"transcribo/enrich"
)

type Tab int

const (
	Original Tab = iota
	Translated
	Structured
	Expressive
	Summary
)

var allTabs = []Tab{Original, Translated, Structured, Expressive, Summary}

func (t Tab) String() string {
	switch t {
	case Translated:
		return "translated"
	case Structured:
		return "structured"
	case Expressive:
		return "expressive"
	case Summary:
		return "summary"
	}
	return "original"
}

// Texts holds the backing text of every tab.
type Texts struct {
	Raw        string
	Interim    string
	Translated string
	Structured string
	Expressive string
	Summary    string
	// Language is the language Translated is in.
	Language string
}

// FromState combines a transcript with the pipeline's outputs.
func FromState(raw, interim string, st enrich.State) Texts {
	return Texts{
		Raw:        raw,
		Interim:    interim,
		Translated: st.Translated,
		Structured: st.Structured,
		Expressive: st.Expressive,
		Summary:    st.Summary,
		Language:   st.TranslatedLanguage,
	}
}

func (x Texts) text(t Tab) string {
	switch t {
	case Translated:
		return x.Translated
	case Structured:
		return x.Structured
	case Expressive:
		return x.Expressive
	case Summary:
		return x.Summary
	}
	return x.Raw
}

// Available lists the tabs that can be shown: Original always, the others
// only when their text is non-empty.
func Available(x Texts) []Tab {
	tabs := []Tab{Original}
	for _, t := range allTabs[1:] {
		if strings.TrimSpace(x.text(t)) != "" {
			tabs = append(tabs, t)
		}
	}
	return tabs
}

// Resolve returns want if it is available, else Original.
func Resolve(x Texts, want Tab) Tab {
	for _, t := range Available(x) {
		if t == want {
			return t
		}
	}
	return Original
}

// Next steps through the available tabs from cur by delta, wrapping.
func Next(x Texts, cur Tab, delta int) Tab {
	tabs := Available(x)
	n := len(tabs)
	for i, t := range tabs {
		if t == cur {
			return tabs[((i+delta)%n+n)%n]
		}
	}
	return Original
}

// Label is the tab's display title. The translation is titled with its
// language.
func Label(x Texts, t Tab) string {
	switch t {
	case Translated:
		if x.Language != "" {
			return enrich.CanonicalLanguage(x.Language)
		}
		return "Translated"
	case Structured:
		return "Structured"
	case Expressive:
		return "Expressive"
	case Summary:
		return "Summary"
	}
	return "Original"
}

// Body is the text shown under tab t. The Original tab also carries the
// interim fragment, separately so callers can style it.
func Body(x Texts, t Tab) (text, interim string) {
	t = Resolve(x, t)
	if t == Original {
		return strings.TrimRight(x.Raw, " "), x.Interim
	}
	return x.text(t), ""
}
