package model

import (
	"time"

	"github.com/google/uuid"
)

// JournalEntry is a user's mood log for one calendar day.
type JournalEntry struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	UserID    string     `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_journal_user_day"`
	Date      time.Time  `json:"date" gorm:"type:date;not null;uniqueIndex:idx_journal_user_day"`
	MoodLabel string     `json:"moodLabel" gorm:"size:32;not null"`
	Intensity float64    `json:"intensity"` // 0..10
	Notes     string     `json:"notes" gorm:"type:text"`
	Tags      StringList `json:"tags" gorm:"type:json"`
	CreatedAt time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (JournalEntry) TableName() string {
	return "journal_entries"
}

// NewJournalEntry truncates date to the start of its day (UTC).
func NewJournalEntry(userID string, date time.Time, moodLabel string, intensity float64, notes string, tags []string) *JournalEntry {
	return &JournalEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Date:      StartOfDay(date),
		MoodLabel: moodLabel,
		Intensity: intensity,
		Notes:     notes,
		Tags:      tags,
	}
}

// StartOfDay returns midnight UTC of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
