package model

import (
	"time"

	"github.com/google/uuid"
)

// EventMoodSong 用户在某种心情下播放了某首歌
const EventMoodSong = "mood_song"

// AnalyticsEvent is an append-only usage record.
type AnalyticsEvent struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	UserID     string     `json:"userId" gorm:"size:36;not null;index:idx_analytics_user_type"`
	Type       string     `json:"type" gorm:"size:32;not null;index:idx_analytics_user_type"`
	MoodLabel  string     `json:"moodLabel" gorm:"size:32;not null"`
	SongID     *string    `json:"songId,omitempty" gorm:"size:36"`
	SongTitle  string     `json:"songTitle,omitempty" gorm:"size:255"`
	SongArtist string     `json:"songArtist,omitempty" gorm:"size:255"`
	SongGenres StringList `json:"songGenres" gorm:"type:json"`
	Metadata   JSONMap    `json:"metadata,omitempty" gorm:"type:json"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}

func NewAnalyticsEvent(userID, eventType, moodLabel string) *AnalyticsEvent {
	return &AnalyticsEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      eventType,
		MoodLabel: moodLabel,
	}
}

// MoodCount is one bucket of a mood distribution.
type MoodCount struct {
	MoodLabel string `json:"moodLabel"`
	Count     int64  `json:"count"`
}

// AnalyticsSummary aggregates a user's activity.
type AnalyticsSummary struct {
	JournalCount     int64       `json:"journalCount"`
	DetectionCount   int64       `json:"detectionCount"`
	PlaylistCount    int64       `json:"playlistCount"`
	GameSessionCount int64       `json:"gameSessionCount"`
	MoodDistribution []MoodCount `json:"moodDistribution"`
	MoodSongPlays    []MoodCount `json:"moodSongPlays"`
}
