// Package mood defines the canonical mood labels and maps raw classifier
// labels onto them.
package mood

import (
	"strings"

	"MelodyMind/core/apperr"
)

// Label is a canonical mood tag. Values outside the constants below are
// never produced by this package.
type Label string

const (
	Happy       Label = "happy"
	Sad         Label = "sad"
	Energetic   Label = "energetic"
	Calm        Label = "calm"
	Anxious     Label = "anxious"
	Excited     Label = "excited"
	Melancholic Label = "melancholic"
	Focused     Label = "focused"
	Neutral     Label = "neutral"
	Angry       Label = "angry"
	Disgust     Label = "disgust"
	Fear        Label = "fear"
	Surprise    Label = "surprise"
	Relaxed     Label = "relaxed"
)

// All lists every canonical label.
var All = []Label{
	Happy, Sad, Energetic, Calm, Anxious, Excited, Melancholic,
	Focused, Neutral, Angry, Disgust, Fear, Surprise, Relaxed,
}

var canonical = func() map[Label]struct{} {
	m := make(map[Label]struct{}, len(All))
	for _, l := range All {
		m[l] = struct{}{}
	}
	return m
}()

// Valid reports whether l is one of the canonical labels.
func (l Label) Valid() bool {
	_, ok := canonical[l]
	return ok
}

func (l Label) String() string {
	return string(l)
}

// Title returns the label with its first letter upper-cased ("happy" -> "Happy").
func (l Label) Title() string {
	if l == "" {
		return ""
	}
	s := string(l)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Parse accepts a mood declared by a caller. Only canonical labels pass;
// raw classifier vocabularies go through Normalize instead.
func Parse(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return "", apperr.Invalid("mood label required")
	}
	if !l.Valid() {
		return "", apperr.Invalid("unknown mood label %q", s)
	}
	return l, nil
}
