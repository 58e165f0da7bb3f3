package inference

import (
	"context"
	"net/http"
	"strings"
	"time"

	"MelodyMind/config"
	"MelodyMind/logger"
)

// Set bundles one strategy per capability. It is read-only after NewSet,
// so it can be shared by every request goroutine.
type Set struct {
	Image    ImageAnalyzer
	Text     TextAnalyzer
	Audio    AudioAnalyzer
	Embedder Embedder

	modes  map[string]Mode
	rerank bool
}

func resolveMode(configured, token string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(configured))) == ModeHF && token != "" {
		return ModeHF
	}
	return ModeMock
}

// NewSet selects the strategies from cfg. A capability runs against the
// provider only when its mode is "hf" and a token is configured.
func NewSet(cfg *config.Config, httpClient *http.Client) *Set {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HFTimeout}
	}
	client := NewClient(cfg.HFBaseURL, cfg.HFAPIToken, httpClient)

	s := &Set{modes: map[string]Mode{
		"image":     resolveMode(cfg.AIFaceAdapter, cfg.HFAPIToken),
		"text":      resolveMode(cfg.AITextAdapter, cfg.HFAPIToken),
		"audio":     resolveMode(cfg.AIAudioAdapter, cfg.HFAPIToken),
	}}

	var (
		image ImageAnalyzer = MockImage{}
		text  TextAnalyzer  = MockText{}
		audio AudioAnalyzer = MockAudio{}
		embed Embedder      = unconfiguredEmbedder{}
	)
	if s.modes["image"] == ModeHF {
		image = &HFImage{Client: client, ModelID: cfg.HFImageModelID}
	}
	if s.modes["text"] == ModeHF {
		text = &HFText{Client: client, ModelID: cfg.HFTextModelID}
	}
	if s.modes["audio"] == ModeHF {
		audio = &HFAudio{Client: client, ModelID: cfg.HFAudioModelID}
	}
	// 有 token 就可以 embed，推荐路由是否重排只看 AI_RECO_ADAPTER
	s.modes["embedding"] = ModeMock
	if client.Configured() {
		embed = &HFEmbedder{Client: client, ModelID: cfg.HFEmbedModelID}
		s.modes["embedding"] = ModeHF
	}
	s.rerank = resolveMode(cfg.AIRecoAdapter, cfg.HFAPIToken) == ModeHF

	s.Image = observedImage{image, s.modes["image"]}
	s.Text = observedText{text, s.modes["text"]}
	s.Audio = observedAudio{audio, s.modes["audio"]}
	s.Embedder = observedEmbedder{embed, s.modes["embedding"]}

	logger.Info("Inference adapters selected",
		logger.String("image", string(s.modes["image"])),
		logger.String("text", string(s.modes["text"])),
		logger.String("audio", string(s.modes["audio"])),
		logger.Bool("rerank", s.rerank))
	return s
}

// Mode reports the strategy chosen for a capability (image, text, audio,
// embedding).
func (s *Set) Mode(capability string) Mode {
	if m, ok := s.modes[capability]; ok {
		return m
	}
	return ModeMock
}

// RerankEnabled is true only when recommendations run in hf mode with a
// token present.
func (s *Set) RerankEnabled() bool {
	return s.rerank
}

type observedImage struct {
	next ImageAnalyzer
	mode Mode
}

func (o observedImage) AnalyzeImage(ctx context.Context, image []byte) (*Result, error) {
	start := time.Now()
	res, err := o.next.AnalyzeImage(ctx, image)
	observe("image", o.mode, start, err)
	return res, err
}

type observedText struct {
	next TextAnalyzer
	mode Mode
}

func (o observedText) AnalyzeText(ctx context.Context, text string, intensity *float64) (*Result, error) {
	start := time.Now()
	res, err := o.next.AnalyzeText(ctx, text, intensity)
	observe("text", o.mode, start, err)
	return res, err
}

type observedAudio struct {
	next AudioAnalyzer
	mode Mode
}

func (o observedAudio) AnalyzeAudio(ctx context.Context, audio []byte) (*Result, error) {
	start := time.Now()
	res, err := o.next.AnalyzeAudio(ctx, audio)
	observe("audio", o.mode, start, err)
	return res, err
}

type observedEmbedder struct {
	next Embedder
	mode Mode
}

func (o observedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	vec, err := o.next.Embed(ctx, text)
	observe("embedding", o.mode, start, err)
	return vec, err
}
