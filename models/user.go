package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a storyteller, keyed by Farcaster id.
type User struct {
	ID                 string     `gorm:"primaryKey;type:uuid" json:"id"`
	FID                int64      `gorm:"column:fid;uniqueIndex;not null" json:"fid"`
	Username           string     `gorm:"size:64" json:"username"`
	LorePoints         int64      `gorm:"not null;default:0" json:"lorePoints"`
	CurrentStreak      int        `gorm:"not null;default:0" json:"currentStreak"`
	LongestStreak      int        `gorm:"not null;default:0" json:"longestStreak"`
	LastSubmissionDate *time.Time `json:"lastSubmissionDate,omitempty"`

	Timestamps
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
