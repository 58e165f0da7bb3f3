package inference

import (
	"context"
	"strings"

	"MelodyMind/core/apperr"
	"MelodyMind/core/mood"
)

const (
	defaultImageScore = 0.5
	defaultTextScore  = 0.5
	defaultAudioScore = 0.6
)

// HFImage classifies facial expressions with an image classification model.
type HFImage struct {
	Client  *Client
	ModelID string
}

func (a *HFImage) AnalyzeImage(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, apperr.Invalid("image payload required")
	}
	raw, err := a.Client.PostBinary(ctx, a.ModelID, image)
	if err != nil {
		return nil, err
	}
	scores := parseScores(raw)
	best, ok := top(scores)
	label, score := mood.Neutral, defaultImageScore
	if ok {
		label, score = mood.Normalize(mood.Face, best.Label), best.Score
	}
	return &Result{
		Label:      label,
		Confidence: ptr(score),
		Intensity:  clamp(score*10, 0, 10),
		RawScore:   score,
		Details:    map[string]any{"raw": scores},
	}, nil
}

// HFText classifies free text with a go-emotions style model.
type HFText struct {
	Client  *Client
	ModelID string
}

func (a *HFText) AnalyzeText(ctx context.Context, text string, intensity *float64) (*Result, error) {
	if err := checkIntensity(intensity); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Invalid("text required")
	}
	raw, err := a.Client.PostJSON(ctx, a.ModelID, map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}
	scores := parseScores(raw)
	best, ok := top(scores)
	label, conf := mood.Neutral, defaultTextScore
	if ok {
		label, conf = mood.Normalize(mood.Emotion, best.Label), best.Score
	}

	level := textIntensity(label, conf)
	if intensity != nil {
		level = *intensity
	}
	return &Result{
		Label:      label,
		Confidence: ptr(conf),
		Intensity:  level,
		RawScore:   conf,
		Details:    map[string]any{"raw": scores},
	}, nil
}

// textIntensity derives a 0..10 level from the classifier confidence.
// The constants are a carried-over heuristic, not a calibrated model.
func textIntensity(label mood.Label, conf float64) float64 {
	switch label {
	case mood.Happy:
		return clamp(conf*8+2, 0, 10)
	case mood.Sad:
		return clamp((1-conf)*8+2, 0, 10)
	default:
		return 5
	}
}

// HFAudio classifies speech emotion from a raw recording.
type HFAudio struct {
	Client  *Client
	ModelID string
}

func (a *HFAudio) AnalyzeAudio(ctx context.Context, audio []byte) (*Result, error) {
	if len(audio) == 0 {
		return nil, apperr.Invalid("audio payload required")
	}
	raw, err := a.Client.PostBinary(ctx, a.ModelID, audio)
	if err != nil {
		return nil, err
	}
	scores := parseScores(raw)
	best, ok := top(scores)
	label, score := mood.Neutral, defaultAudioScore
	if ok {
		label, score = mood.Normalize(mood.Speech, best.Label), best.Score
	}
	return &Result{
		Label:      label,
		Confidence: ptr(score),
		Intensity:  clamp(score*10, 0, 10),
		RawScore:   score,
		Details:    map[string]any{"raw": scores, "features": map[string]any{}},
	}, nil
}

// HFEmbedder produces sentence embeddings with a feature extraction model.
type HFEmbedder struct {
	Client  *Client
	ModelID string
}

func (a *HFEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	raw, err := a.Client.PostJSON(ctx, a.ModelID, map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}
	vec, err := parseVector(raw)
	if err != nil {
		return nil, &apperr.ProviderError{Model: a.ModelID, StatusCode: 200, Body: err.Error()}
	}
	return vec, nil
}
