package mood

import "strings"

// Vocabulary identifies the label set a raw classifier output comes from.
type Vocabulary string

const (
	// Face is the facial-expression classifier vocabulary.
	Face Vocabulary = "face"
	// Emotion is the fine-grained text emotion vocabulary (go-emotions).
	Emotion Vocabulary = "emotion"
	// Speech is the speech emotion recognition vocabulary.
	Speech Vocabulary = "speech"
)

var tables = map[Vocabulary]map[string]Label{
	Face: {
		"happy":     Happy,
		"happiness": Happy,
		"angry":     Angry,
		"anger":     Angry,
		"disgust":   Disgust,
		"fear":      Fear,
		"fearful":   Fear,
		"surprise":  Surprise,
		"surprised": Surprise,
		"sad":       Sad,
		"sadness":   Sad,
		"neutral":   Neutral,
		"calm":      Calm,
		"relaxed":   Relaxed,
	},
	Emotion: {
		"joy":            Happy,
		"optimism":       Happy,
		"admiration":     Happy,
		"approval":       Happy,
		"gratitude":      Happy,
		"amusement":      Happy,
		"pride":          Happy,
		"love":           Happy,
		"relief":         Relaxed,
		"anger":          Angry,
		"annoyance":      Angry,
		"disappointment": Sad,
		"sadness":        Sad,
		"grief":          Sad,
		"remorse":        Sad,
		"embarrassment":  Sad,
		"fear":           Anxious,
		"anxiety":        Anxious,
		"nervousness":    Anxious,
		"disgust":        Disgust,
		"surprise":       Surprise,
		"curiosity":      Focused,
		"realization":    Focused,
		"confusion":      Neutral,
		"neutral":        Neutral,
	},
	Speech: {
		"happy":     Happy,
		"hap":       Happy,
		"anger":     Angry,
		"angry":     Angry,
		"ang":       Angry,
		"sad":       Sad,
		"sadness":   Sad,
		"fear":      Anxious,
		"fearful":   Anxious,
		"disgust":   Disgust,
		"surprise":  Surprise,
		"surprised": Surprise,
		"neutral":   Neutral,
		"neu":       Neutral,
		"calm":      Calm,
	},
}

// Normalize maps a raw label from vocab onto a canonical Label.
// Lookup is case-insensitive; unknown or empty input yields Neutral.
func Normalize(vocab Vocabulary, raw string) Label {
	table, ok := tables[vocab]
	if !ok {
		return Neutral
	}
	if l, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return l
	}
	return Neutral
}
