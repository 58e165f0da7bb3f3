package inference

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"MelodyMind/core/apperr"
	"MelodyMind/core/mood"
)

// MockImage returns a fixed neutral reading.
type MockImage struct{}

func (MockImage) AnalyzeImage(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, apperr.Invalid("image payload required")
	}
	return &Result{
		Label:      mood.Neutral,
		Confidence: ptr(0.5),
		Intensity:  5,
		RawScore:   0.5,
		Details:    map[string]any{"mock": true},
	}, nil
}

// MockText grows its confidence with the text length.
type MockText struct{}

func (MockText) AnalyzeText(ctx context.Context, text string, intensity *float64) (*Result, error) {
	if err := checkIntensity(intensity); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	conf := 0.5
	if n := utf8.RuneCountInString(text); n > 0 {
		conf = math.Min(0.9, 0.3+float64(n)/200)
	}
	level := 5.0
	if intensity != nil {
		level = *intensity
	}
	return &Result{
		Label:      mood.Neutral,
		Confidence: ptr(conf),
		Intensity:  level,
		RawScore:   conf,
		Details:    map[string]any{"mock": true},
	}, nil
}

// MockAudio returns a fixed calm reading.
type MockAudio struct{}

func (MockAudio) AnalyzeAudio(ctx context.Context, audio []byte) (*Result, error) {
	if len(audio) == 0 {
		return nil, apperr.Invalid("audio payload required")
	}
	return &Result{
		Label:      mood.Calm,
		Confidence: ptr(0.7),
		Intensity:  7,
		RawScore:   0.7,
		Details:    map[string]any{"mock": true, "features": map[string]any{}},
	}, nil
}

// unconfiguredEmbedder is used when no provider token is present. There is
// no mock embedding; callers must not rank with it.
type unconfiguredEmbedder struct{}

func (unconfiguredEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, &apperr.ConfigurationError{Capability: "embedding", Reason: "HF_API_TOKEN not set"}
}

func checkIntensity(intensity *float64) error {
	if intensity == nil {
		return nil
	}
	if math.IsNaN(*intensity) || *intensity < 0 || *intensity > 10 {
		return apperr.Invalid("intensity must be within 0..10, got %v", *intensity)
	}
	return nil
}
