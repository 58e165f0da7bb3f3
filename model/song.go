package model

import (
	"time"

	"github.com/google/uuid"
)

// Song is a catalog entry. Remote songs live in object storage under
// ObjectKey; local songs are read from LocalPath.
type Song struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	Title        string     `json:"title" gorm:"size:255;not null;index"`
	Artist       string     `json:"artist" gorm:"size:255;index"`
	Album        string     `json:"album" gorm:"size:255"`
	Duration     int        `json:"duration"` // seconds, 0 when unknown
	Genres       StringList `json:"genres" gorm:"type:json"`
	MoodTags     StringList `json:"moodTags" gorm:"type:json"`
	CoverURL     string     `json:"coverUrl,omitempty" gorm:"size:512"`
	ObjectKey    string     `json:"-" gorm:"size:512;index"`
	ContentType  string     `json:"contentType,omitempty" gorm:"size:100"`
	LocalPath    string     `json:"-" gorm:"size:1024"`
	FileSize     int64      `json:"fileSize"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	IsLocal      bool       `json:"isLocal" gorm:"index;default:false"`
	UploadedBy   *string    `json:"uploadedBy,omitempty" gorm:"size:36"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (Song) TableName() string {
	return "songs"
}

// NewSong assigns a fresh ID.
func NewSong(title, artist, album string) *Song {
	return &Song{
		ID:     uuid.New().String(),
		Title:  title,
		Artist: artist,
		Album:  album,
	}
}

// StreamURL is the public streaming path for a song.
func StreamURL(songID string) string {
	return "/api/v1/songs/stream/" + songID
}

// SongQuery selects songs whose mood tags intersect MoodTags or whose
// genres intersect Genres. LocalOnly restricts the match to local files.
type SongQuery struct {
	MoodTags   []string
	Genres     []string
	LocalOnly  bool
	ExcludeIDs []string
}
