package models

import (
	"time"

	"gorm.io/gorm"
)

type WeeklyChallenge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Theme     string    `gorm:"size:120;not null" json:"theme"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	StartDate time.Time `gorm:"not null;index" json:"startDate"`
	EndDate   time.Time `gorm:"not null;index" json:"endDate"`
	WinnerFID *int64    `gorm:"column:winner_fid" json:"winnerFid,omitempty"`

	Timestamps
}

func (w *WeeklyChallenge) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

type ChallengeSubmission struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string `gorm:"type:uuid;not null;uniqueIndex:idx_challenge_user,priority:1" json:"challengeId"`
	UserID      string `gorm:"type:uuid;not null;uniqueIndex:idx_challenge_user,priority:2" json:"userId"`
	LineID      string `gorm:"type:uuid;not null" json:"lineId"`

	Line *StoryLine `gorm:"foreignKey:LineID" json:"line,omitempty"`
	User *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Timestamps
}

func (s *ChallengeSubmission) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// DailyPrompt is keyed by the calendar day (YYYY-MM-DD) in the service timezone.
type DailyPrompt struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	Day             string `gorm:"size:10;uniqueIndex;not null" json:"day"`
	Prompt          string `gorm:"type:text;not null" json:"prompt"`
	SubmissionCount int64  `gorm:"not null;default:0" json:"submissionCount"`

	Timestamps
}

func (p *DailyPrompt) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
