package model

import (
	"time"

	"github.com/google/uuid"
)

// 检测来源
const (
	DetectionImage = "image"
	DetectionText  = "text"
	DetectionAudio = "audio"
)

// MoodDetection records one analyzer reading.
type MoodDetection struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	UserID        string    `json:"userId" gorm:"size:36;index;not null"`
	DetectionType string    `json:"detectionType" gorm:"size:16;not null"`
	MoodLabel     string    `json:"moodLabel" gorm:"size:32;not null"`
	Confidence    *float64  `json:"confidence"`
	Intensity     float64   `json:"intensity"`
	RawScore      float64   `json:"rawScore"`
	Metadata      JSONMap   `json:"metadata,omitempty" gorm:"type:json"`
	CreatedAt     time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (MoodDetection) TableName() string {
	return "mood_detections"
}

func NewMoodDetection(userID, detectionType string) *MoodDetection {
	return &MoodDetection{
		ID:            uuid.New().String(),
		UserID:        userID,
		DetectionType: detectionType,
	}
}
