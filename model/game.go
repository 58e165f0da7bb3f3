package model

import (
	"time"

	"github.com/google/uuid"
)

// GameSession is one play of a mood mini game, with the mood before and
// after when the user reported them.
type GameSession struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      string    `json:"userId" gorm:"size:36;not null;index"`
	GameSlug    string    `json:"gameSlug" gorm:"size:64;not null"`
	DurationSec int       `json:"durationSec" gorm:"not null"`
	PreMood     string    `json:"preMood,omitempty" gorm:"size:32"`
	PostMood    string    `json:"postMood,omitempty" gorm:"size:32"`
	Score       *float64  `json:"score,omitempty"`
	Notes       string    `json:"notes,omitempty" gorm:"type:text"`
	Metadata    JSONMap   `json:"metadata,omitempty" gorm:"type:json"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (GameSession) TableName() string {
	return "game_sessions"
}

func NewGameSession(userID, gameSlug string, durationSec int) *GameSession {
	return &GameSession{
		ID:          uuid.New().String(),
		UserID:      userID,
		GameSlug:    gameSlug,
		DurationSec: durationSec,
	}
}

// GameStats 按游戏聚合，AvgScore 在没有分数时为 nil
type GameStats struct {
	GameSlug      string   `json:"gameSlug"`
	TotalSessions int64    `json:"totalSessions"`
	TotalDuration int64    `json:"totalDuration"`
	AvgScore      *float64 `json:"avgScore"`
}
