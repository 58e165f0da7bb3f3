package recommend

import (
	"context"
	"fmt"

	"MelodyMind/core/apperr"
	"MelodyMind/core/mood"
	"MelodyMind/logger"
	"MelodyMind/metrics"
	"MelodyMind/model"
)

// JournalReader loads a user's journal, most recent first.
type JournalReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]model.JournalEntry, error)
}

// SongFinder queries the catalog by tag overlap, newest first.
type SongFinder interface {
	FindByTags(ctx context.Context, q model.SongQuery, limit int) ([]model.Song, error)
}

// ResultCache memoizes recommendation results per (user, mood, limit).
type ResultCache interface {
	Get(ctx context.Context, userID, moodLabel string, limit int, dst any) (bool, error)
	Set(ctx context.Context, userID, moodLabel string, limit int, v any) error
	Invalidate(ctx context.Context, userID string) error
	// InvalidateCatalog drops every user's results after the catalog changes.
	InvalidateCatalog(ctx context.Context) error
}

// Recommendations is what Service.Recommend returns.
type Recommendations struct {
	Mood     mood.Label   `json:"mood"`
	Genres   []string     `json:"genres"`
	Songs    []model.Song `json:"songs"`
	Reranked bool         `json:"reranked"`
}

// Service wires Recommend to the journal, the catalog and a ranker.
type Service struct {
	journal JournalReader
	songs   SongFinder
	ranker  Ranker
	cache   ResultCache
}

// NewService creates a Service. ranker and cache may be nil.
func NewService(journal JournalReader, songs SongFinder, ranker Ranker, cache ResultCache) *Service {
	if ranker == nil {
		ranker = IdentityRanker{}
	}
	return &Service{journal: journal, songs: songs, ranker: ranker, cache: cache}
}

// Recommend returns ranked mood-matched songs for userID.
func (s *Service) Recommend(ctx context.Context, userID string, m mood.Label, limit int) (*Recommendations, error) {
	if userID == "" {
		return nil, apperr.Invalid("user required")
	}
	if !m.Valid() {
		return nil, apperr.Invalid("unknown mood label %q", m)
	}
	limit = ClampLimit(limit)

	if s.cache != nil {
		var cached Recommendations
		hit, err := s.cache.Get(ctx, userID, string(m), limit, &cached)
		switch {
		case err != nil:
			logger.Warn("[Recommend] cache read failed", logger.ErrorField(err))
		case hit:
			metrics.RecommendCache.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.RecommendCache.WithLabelValues("miss").Inc()
	}

	history, err := s.journal.Recent(ctx, userID, JournalLookback)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	res := Recommend(Request{Mood: m, History: history, Limit: limit})
	songs, err := s.songs.FindByTags(ctx, model.SongQuery{
		MoodTags: []string{string(m)},
		Genres:   res.Genres,
	}, res.Limit)
	if err != nil {
		return nil, fmt.Errorf("find songs: %w", err)
	}

	ranked, err := s.ranker.Rank(ctx, m, res.SeedHistory, songs)
	if err != nil {
		return nil, fmt.Errorf("rank songs: %w", err)
	}

	_, identity := s.ranker.(IdentityRanker)
	out := &Recommendations{Mood: m, Genres: res.Genres, Songs: ranked, Reranked: !identity}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, string(m), limit, out); err != nil {
			logger.Warn("[Recommend] cache write failed", logger.ErrorField(err))
		}
	}
	return out, nil
}

// Invalidate drops cached results for userID, typically after a journal
// write.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn("[Recommend] cache invalidate failed", logger.String("userId", userID), logger.ErrorField(err))
	}
}

// InvalidateCatalog drops cached results of every user, after songs were
// added or changed.
func (s *Service) InvalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		logger.Warn("[Recommend] catalog invalidate failed", logger.ErrorField(err))
	}
}
