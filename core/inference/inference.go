// Package inference provides the pluggable mood detection and text
// embedding adapters. Each capability has a mock strategy and a strategy
// backed by the Hugging Face inference API; the strategy is chosen once,
// when the Set is built.
package inference

import (
	"context"
	"time"

	"MelodyMind/core/mood"
	"MelodyMind/metrics"
)

// Mode names an adapter strategy.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeHF   Mode = "hf"
)

// Result is the outcome of a single detection call.
type Result struct {
	Label      mood.Label     `json:"mood_label"`
	Confidence *float64       `json:"confidence"` // nil when the provider gave no score
	Intensity  float64        `json:"intensity"` // 0..10
	RawScore   float64        `json:"raw_score"`
	Details    map[string]any `json:"details,omitempty"`
}

// ImageAnalyzer detects mood from a facial snapshot.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte) (*Result, error)
}

// TextAnalyzer detects mood from free text. intensity, when non-nil, is the
// caller's own 0..10 rating and overrides the derived value.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string, intensity *float64) (*Result, error)
}

// AudioAnalyzer detects mood from a voice recording.
type AudioAnalyzer interface {
	AnalyzeAudio(ctx context.Context, audio []byte) (*Result, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

func ptr(f float64) *float64 { return &f }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func observe(capability string, mode Mode, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.InferenceRequests.WithLabelValues(capability, string(mode), outcome).Inc()
	if mode == ModeHF {
		metrics.InferenceDuration.WithLabelValues(capability).Observe(time.Since(start).Seconds())
	}
}
