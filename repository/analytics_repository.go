package repository

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"MelodyMind/model"
)

// AnalyticsRepository 行为事件与统计
type AnalyticsRepository interface {
	Record(ctx context.Context, e *model.AnalyticsEvent) error
	Summary(ctx context.Context, userID string) (*model.AnalyticsSummary, error)
}

type gormAnalyticsRepository struct {
	db      *gorm.DB
	journal JournalRepository
	moods   MoodDetectionRepository
	games   GameSessionRepository
}

func NewGormAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &gormAnalyticsRepository{
		db:      db,
		journal: NewGormJournalRepository(db),
		moods:   NewGormMoodDetectionRepository(db),
		games:   NewGormGameSessionRepository(db),
	}
}

func (r *gormAnalyticsRepository) Record(ctx context.Context, e *model.AnalyticsEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// Summary 各项统计互不依赖，并发查询
func (r *gormAnalyticsRepository) Summary(ctx context.Context, userID string) (*model.AnalyticsSummary, error) {
	s := &model.AnalyticsSummary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := r.journal.Count(gctx, userID)
		s.JournalCount = n
		return err
	})
	g.Go(func() error {
		n, err := r.moods.Count(gctx, userID)
		s.DetectionCount = n
		return err
	})
	g.Go(func() error {
		n, err := r.games.Count(gctx, userID)
		s.GameSessionCount = n
		return err
	})
	g.Go(func() error {
		return r.db.WithContext(gctx).Model(&model.Playlist{}).
			Where("user_id = ?", userID).
			Count(&s.PlaylistCount).Error
	})
	g.Go(func() error {
		dist, err := r.journal.MoodDistribution(gctx, userID)
		s.MoodDistribution = dist
		return err
	})
	g.Go(func() error {
		return r.db.WithContext(gctx).Model(&model.AnalyticsEvent{}).
			Select("mood_label, COUNT(*) AS count").
			Where("user_id = ? AND type = ?", userID, model.EventMoodSong).
			Group("mood_label").
			Order("count DESC").
			Scan(&s.MoodSongPlays).Error
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analytics summary: %w", err)
	}
	if s.MoodDistribution == nil {
		s.MoodDistribution = []model.MoodCount{}
	}
	if s.MoodSongPlays == nil {
		s.MoodSongPlays = []model.MoodCount{}
	}
	return s, nil
}
