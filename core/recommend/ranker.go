package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"MelodyMind/core/inference"
	"MelodyMind/core/mood"
	"MelodyMind/logger"
	"MelodyMind/model"
)

const (
	cosineEpsilon = 1e-8
	defaultFanout = 4
)

// Ranker orders candidate songs for a user.
type Ranker interface {
	Rank(ctx context.Context, m mood.Label, history []model.JournalEntry, songs []model.Song) ([]model.Song, error)
}

// IdentityRanker keeps the input order.
type IdentityRanker struct{}

func (IdentityRanker) Rank(_ context.Context, _ mood.Label, _ []model.JournalEntry, songs []model.Song) ([]model.Song, error) {
	return songs, nil
}

// VectorCache stores embeddings keyed by the embedded text.
type VectorCache interface {
	GetVector(ctx context.Context, text string) ([]float64, bool, error)
	SetVector(ctx context.Context, text string, vec []float64) error
}

// EmbeddingRanker scores each song by cosine similarity between its text
// embedding and the embedding of the user's context.
type EmbeddingRanker struct {
	embedder inference.Embedder
	cache    VectorCache
	fanout   int
}

// Option configures an EmbeddingRanker.
type Option func(*EmbeddingRanker)

// WithVectorCache reads song embeddings through c.
func WithVectorCache(c VectorCache) Option {
	return func(r *EmbeddingRanker) {
		r.cache = c
	}
}

// WithFanout bounds the number of concurrent embedding calls.
func WithFanout(n int) Option {
	return func(r *EmbeddingRanker) {
		if n > 0 {
			r.fanout = n
		}
	}
}

// NewEmbeddingRanker creates a ranker backed by e.
func NewEmbeddingRanker(e inference.Embedder, opts ...Option) *EmbeddingRanker {
	r := &EmbeddingRanker{embedder: e, fanout: defaultFanout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRanker picks the embedding ranker when the set allows re-ranking and
// the identity ranker otherwise.
func NewRanker(set *inference.Set, opts ...Option) Ranker {
	if set == nil || !set.RerankEnabled() {
		return IdentityRanker{}
	}
	return NewEmbeddingRanker(set.Embedder, opts...)
}

// UserContext renders the text embedded for the user side of the
// similarity.
func UserContext(m mood.Label, history []model.JournalEntry) string {
	lines := []string{fmt.Sprintf("Current mood: %s.", m)}
	for i, h := range history {
		if i == ContextHistory {
			break
		}
		lines = append(lines, fmt.Sprintf("Journal mood: %s, notes: %s", h.MoodLabel, h.Notes))
	}
	return strings.Join(lines, "\n")
}

// SongText renders the text embedded for one song.
func SongText(s model.Song) string {
	parts := []string{s.Title, s.Artist}
	parts = append(parts, s.Genres...)
	parts = append(parts, s.MoodTags...)
	return strings.Join(parts, " ")
}

// Cosine computes dot(a,b) / (|a|*|b| + 1e-8) over the shared prefix.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + cosineEpsilon)
}

func (r *EmbeddingRanker) Rank(ctx context.Context, m mood.Label, history []model.JournalEntry, songs []model.Song) ([]model.Song, error) {
	if len(songs) == 0 {
		return songs, nil
	}

	userVec, err := r.embedder.Embed(ctx, UserContext(m, history))
	if err != nil {
		return nil, fmt.Errorf("embed user context: %w", err)
	}

	scores := make([]float64, len(songs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for i := range songs {
		g.Go(func() error {
			vec, err := r.songVector(gctx, SongText(songs[i]))
			if err != nil {
				return fmt.Errorf("embed song %s: %w", songs[i].ID, err)
			}
			scores[i] = Cosine(userVec, vec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := make([]int, len(songs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	ranked := make([]model.Song, len(songs))
	for pos, i := range idx {
		ranked[pos] = songs[i]
	}
	return ranked, nil
}

func (r *EmbeddingRanker) songVector(ctx context.Context, text string) ([]float64, error) {
	if r.cache != nil {
		vec, ok, err := r.cache.GetVector(ctx, text)
		if err != nil {
			logger.Warn("[Rerank] vector cache read failed", logger.ErrorField(err))
		} else if ok {
			return vec, nil
		}
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetVector(ctx, text, vec); err != nil {
			logger.Warn("[Rerank] vector cache write failed", logger.ErrorField(err))
		}
	}
	return vec, nil
}
