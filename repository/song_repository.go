package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"MelodyMind/model"
)

// SongRepository 歌曲数据访问接口
type SongRepository interface {
	Create(ctx context.Context, song *model.Song) error
	Update(ctx context.Context, song *model.Song) error
	FindByID(ctx context.Context, id string) (*model.Song, error)
	FindByTitleArtist(ctx context.Context, title, artist string) (*model.Song, error)

	// 推荐 / 歌单生成
	FindByTags(ctx context.Context, q model.SongQuery, limit int) ([]model.Song, error)
	FindLocal(ctx context.Context, excludeIDs []string, limit int) ([]model.Song, error)
	FindAny(ctx context.Context, excludeIDs []string, limit int) ([]model.Song, error)

	// 列表
	List(ctx context.Context, limit int) ([]model.Song, error)
	ListLocal(ctx context.Context, limit int) ([]model.Song, error)
}

type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository 创建 GORM 歌曲仓库
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

func (r *gormSongRepository) Create(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Create(song).Error
}

func (r *gormSongRepository) Update(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Save(song).Error
}

func (r *gormSongRepository) FindByID(ctx context.Context, id string) (*model.Song, error) {
	var song model.Song
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&song).Error; err != nil {
		return nil, notFound(err)
	}
	return &song, nil
}

// FindByTitleArtist 精确匹配（忽略大小写），不做子串匹配
func (r *gormSongRepository) FindByTitleArtist(ctx context.Context, title, artist string) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).
		Where("LOWER(title) = LOWER(?) AND LOWER(artist) = LOWER(?)", title, artist).
		First(&song).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &song, nil
}

func jsonArray(values []string) string {
	b, _ := json.Marshal(values)
	return string(b)
}

// tagScope matches songs whose mood tags or genres overlap the query.
func tagScope(q model.SongQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		var conds []string
		var args []interface{}
		if len(q.MoodTags) > 0 {
			conds = append(conds, "JSON_OVERLAPS(mood_tags, ?)")
			args = append(args, jsonArray(q.MoodTags))
		}
		if len(q.Genres) > 0 {
			conds = append(conds, "JSON_OVERLAPS(genres, ?)")
			args = append(args, jsonArray(q.Genres))
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
		if q.LocalOnly {
			db = db.Where("is_local = ?", true)
		}
		return excludeScope(q.ExcludeIDs)(db)
	}
}

func excludeScope(ids []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(ids) == 0 {
			return db
		}
		return db.Where("id NOT IN ?", ids)
	}
}

func newestFirst(limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC").Limit(limit)
	}
}

func (r *gormSongRepository) FindByTags(ctx context.Context, q model.SongQuery, limit int) ([]model.Song, error) {
	if len(q.MoodTags) == 0 && len(q.Genres) == 0 {
		return []model.Song{}, nil
	}
	var songs []model.Song
	err := r.db.WithContext(ctx).Scopes(tagScope(q), newestFirst(limit)).Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("find songs by tags: %w", err)
	}
	return songs, nil
}

func (r *gormSongRepository) FindLocal(ctx context.Context, excludeIDs []string, limit int) ([]model.Song, error) {
	var songs []model.Song
	err := r.db.WithContext(ctx).
		Where("is_local = ?", true).
		Scopes(excludeScope(excludeIDs), newestFirst(limit)).
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("find local songs: %w", err)
	}
	return songs, nil
}

func (r *gormSongRepository) FindAny(ctx context.Context, excludeIDs []string, limit int) ([]model.Song, error) {
	var songs []model.Song
	err := r.db.WithContext(ctx).
		Scopes(excludeScope(excludeIDs), newestFirst(limit)).
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("find songs: %w", err)
	}
	return songs, nil
}

func (r *gormSongRepository) List(ctx context.Context, limit int) ([]model.Song, error) {
	var songs []model.Song
	err := r.db.WithContext(ctx).Scopes(newestFirst(limit)).Find(&songs).Error
	return songs, err
}

func (r *gormSongRepository) ListLocal(ctx context.Context, limit int) ([]model.Song, error) {
	var songs []model.Song
	err := r.db.WithContext(ctx).
		Where("is_local = ?", true).
		Order("title ASC").
		Limit(limit).
		Find(&songs).Error
	return songs, err
}
