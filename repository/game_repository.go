package repository

import (
	"context"

	"gorm.io/gorm"

	"MelodyMind/model"
)

// GameSessionRepository 小游戏记录
type GameSessionRepository interface {
	Create(ctx context.Context, s *model.GameSession) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.GameSession, error)
	// Stats groups the user's sessions by game, longest total duration first.
	Stats(ctx context.Context, userID string) ([]model.GameStats, error)
	Count(ctx context.Context, userID string) (int64, error)
}

type gormGameSessionRepository struct {
	db *gorm.DB
}

func NewGormGameSessionRepository(db *gorm.DB) GameSessionRepository {
	return &gormGameSessionRepository{db: db}
}

func (r *gormGameSessionRepository) Create(ctx context.Context, s *model.GameSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *gormGameSessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.GameSession, error) {
	var out []model.GameSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func gameStatsQuery(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&model.GameSession{}).
		Select("game_slug, COUNT(*) AS total_sessions, COALESCE(SUM(duration_sec), 0) AS total_duration, AVG(score) AS avg_score").
		Where("user_id = ?", userID).
		Group("game_slug").
		Order("total_duration DESC")
}

func (r *gormGameSessionRepository) Stats(ctx context.Context, userID string) ([]model.GameStats, error) {
	out := []model.GameStats{}
	err := gameStatsQuery(r.db.WithContext(ctx), userID).Find(&out).Error
	return out, err
}

func (r *gormGameSessionRepository) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.GameSession{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
