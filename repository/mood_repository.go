package repository

import (
	"context"

	"gorm.io/gorm"

	"MelodyMind/model"
)

// MoodDetectionRepository 心情检测记录
type MoodDetectionRepository interface {
	Create(ctx context.Context, d *model.MoodDetection) error
	History(ctx context.Context, userID string, limit int) ([]model.MoodDetection, error)
	Count(ctx context.Context, userID string) (int64, error)
}

type gormMoodDetectionRepository struct {
	db *gorm.DB
}

func NewGormMoodDetectionRepository(db *gorm.DB) MoodDetectionRepository {
	return &gormMoodDetectionRepository{db: db}
}

func (r *gormMoodDetectionRepository) Create(ctx context.Context, d *model.MoodDetection) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *gormMoodDetectionRepository) History(ctx context.Context, userID string, limit int) ([]model.MoodDetection, error) {
	var out []model.MoodDetection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *gormMoodDetectionRepository) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.MoodDetection{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
