package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder.
type User struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	Email           string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Name            string     `json:"name" gorm:"size:100;not null"`
	PasswordHash    string     `json:"-" gorm:"size:255;not null"` // Not exposed in API responses
	AvatarURL       string     `json:"avatarUrl,omitempty" gorm:"size:512"`
	FavoriteGenres  StringList `json:"favoriteGenres" gorm:"type:json"`
	MoodPreferences StringList `json:"moodPreferences" gorm:"type:json"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// NewUser 创建新用户，密码需已经过哈希
func NewUser(email, name, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
	}
}
