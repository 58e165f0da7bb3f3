package model

import (
	"time"

	"github.com/google/uuid"
)

// Playlist is an ordered list of songs owned by a user.
type Playlist struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	UserID      string         `json:"userId" gorm:"size:36;index;not null"`
	Name        string         `json:"name" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"size:1024"`
	MoodLabel   string         `json:"moodLabel" gorm:"size:32;index"`
	IsPublic    bool           `json:"isPublic" gorm:"default:false"`
	Items       []PlaylistItem `json:"items" gorm:"foreignKey:PlaylistID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// TableName 指定表名
func (Playlist) TableName() string {
	return "playlists"
}

// PlaylistItem places one song at a 0-based position.
type PlaylistItem struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	PlaylistID string    `json:"playlistId" gorm:"size:36;index;not null"`
	SongID     string    `json:"songId" gorm:"size:36;not null"`
	Order      int       `json:"order" gorm:"column:position;not null"`
	AddedAt    time.Time `json:"addedAt" gorm:"autoCreateTime"`
	Song       *Song     `json:"song,omitempty" gorm:"foreignKey:SongID"`
}

// TableName 指定表名
func (PlaylistItem) TableName() string {
	return "playlist_items"
}

// NewPlaylist assigns a fresh ID.
func NewPlaylist(userID, name, description, moodLabel string) *Playlist {
	return &Playlist{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: description,
		MoodLabel:   moodLabel,
	}
}
