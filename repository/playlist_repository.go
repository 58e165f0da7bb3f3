package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"MelodyMind/core/apperr"
	"MelodyMind/model"
)

// PlaylistRepository 歌单数据访问接口
type PlaylistRepository interface {
	Create(ctx context.Context, p *model.Playlist) error
	FetchWithItems(ctx context.Context, id string) (*model.Playlist, error)
	GetOwned(ctx context.Context, id, userID string) (*model.Playlist, error)
	ListByUser(ctx context.Context, userID string) ([]model.Playlist, error)
	Update(ctx context.Context, p *model.Playlist) error
	Delete(ctx context.Context, id, userID string) error
	AddItem(ctx context.Context, playlistID, songID string) (*model.PlaylistItem, error)
}

type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository 创建 GORM 歌单仓库
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

// Create 创建歌单，Items 随歌单一起写入
func (r *gormPlaylistRepository) Create(ctx context.Context, p *model.Playlist) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := p.Items
		if err := tx.Omit("Items").Create(p).Error; err != nil {
			return fmt.Errorf("insert playlist: %w", err)
		}
		if len(items) > 0 {
			for i := range items {
				items[i].PlaylistID = p.ID
				items[i].Song = nil
			}
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("insert playlist items: %w", err)
			}
		}
		p.Items = items
		return nil
	})
}

func withOrderedItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Items.Song")
}

// FetchWithItems 加载歌单及按顺序排列的歌曲
func (r *gormPlaylistRepository) FetchWithItems(ctx context.Context, id string) (*model.Playlist, error) {
	var p model.Playlist
	err := r.db.WithContext(ctx).Scopes(withOrderedItems).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetOwned 只返回属于 userID 的歌单，否则 ErrNotFound
func (r *gormPlaylistRepository) GetOwned(ctx context.Context, id, userID string) (*model.Playlist, error) {
	var p model.Playlist
	err := r.db.WithContext(ctx).Scopes(withOrderedItems).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *gormPlaylistRepository) ListByUser(ctx context.Context, userID string) ([]model.Playlist, error) {
	var playlists []model.Playlist
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&playlists).Error
	return playlists, err
}

// Update 只更新基础信息，不动 Items
func (r *gormPlaylistRepository) Update(ctx context.Context, p *model.Playlist) error {
	res := r.db.WithContext(ctx).Model(&model.Playlist{}).
		Where("id = ? AND user_id = ?", p.ID, p.UserID).
		Updates(map[string]interface{}{
			"name":        p.Name,
			"description": p.Description,
			"mood_label":  p.MoodLabel,
			"is_public":   p.IsPublic,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *gormPlaylistRepository) Delete(ctx context.Context, id, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Playlist{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return tx.Where("playlist_id = ?", id).Delete(&model.PlaylistItem{}).Error
	})
}

// AddItem 追加到末尾，position = 当前最大值 + 1
func (r *gormPlaylistRepository) AddItem(ctx context.Context, playlistID, songID string) (*model.PlaylistItem, error) {
	item := &model.PlaylistItem{PlaylistID: playlistID, SongID: songID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&model.PlaylistItem{}).
			Where("playlist_id = ?", playlistID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}
		item.Order = next
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, fmt.Errorf("add playlist item: %w", err)
	}
	return item, nil
}
