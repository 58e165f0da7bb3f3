package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"MelodyMind/model"
)

// JournalRepository 心情日记数据访问接口
type JournalRepository interface {
	// Upsert 同一用户同一天只保留一条
	Upsert(ctx context.Context, entry *model.JournalEntry) error
	GetByID(ctx context.Context, id, userID string) (*model.JournalEntry, error)
	Recent(ctx context.Context, userID string, limit int) ([]model.JournalEntry, error)
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]model.JournalEntry, error)
	Count(ctx context.Context, userID string) (int64, error)
	MoodDistribution(ctx context.Context, userID string) ([]model.MoodCount, error)
}

type gormJournalRepository struct {
	db *gorm.DB
}

// NewGormJournalRepository 创建 GORM 日记仓库
func NewGormJournalRepository(db *gorm.DB) JournalRepository {
	return &gormJournalRepository{db: db}
}

func (r *gormJournalRepository) Upsert(ctx context.Context, entry *model.JournalEntry) error {
	entry.Date = model.StartOfDay(entry.Date)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"mood_label", "intensity", "notes", "tags", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("upsert journal entry: %w", err)
	}
	// 冲突时 entry.ID 不是库里的 ID，重新读取
	return r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", entry.UserID, entry.Date).
		First(entry).Error
}

func (r *gormJournalRepository) GetByID(ctx context.Context, id, userID string) (*model.JournalEntry, error) {
	var entry model.JournalEntry
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&entry).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// Recent 按日期倒序
func (r *gormJournalRepository) Recent(ctx context.Context, userID string, limit int) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ListRange 闭区间 [from, to]，按日期正序
func (r *gormJournalRepository) ListRange(ctx context.Context, userID string, from, to time.Time) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date BETWEEN ? AND ?", userID, model.StartOfDay(from), model.StartOfDay(to)).
		Order("date ASC").
		Find(&entries).Error
	return entries, err
}

func (r *gormJournalRepository) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.JournalEntry{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *gormJournalRepository) MoodDistribution(ctx context.Context, userID string) ([]model.MoodCount, error) {
	var out []model.MoodCount
	err := r.db.WithContext(ctx).Model(&model.JournalEntry{}).
		Select("mood_label, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("mood_label").
		Order("count DESC").
		Scan(&out).Error
	return out, err
}
