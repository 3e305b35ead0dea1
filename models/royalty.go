package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StoryShare is a contributor's fractional ownership of a minted story, in basis points.
type StoryShare struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	StoryID     string `gorm:"type:uuid;not null;uniqueIndex:idx_story_share_user,priority:1" json:"storyId"`
	UserID      string `gorm:"type:uuid;not null;uniqueIndex:idx_story_share_user,priority:2" json:"userId"`
	ShareAmount int64  `gorm:"not null" json:"shareAmount"`
	TokenID     int64  `gorm:"not null" json:"tokenId"`
	Address     string `gorm:"size:64" json:"address"`

	Timestamps
}

func (s *StoryShare) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// RoyaltyPayment is the append-only audit record of a secondary sale distribution.
type RoyaltyPayment struct {
	ID                string                                 `gorm:"primaryKey;type:uuid" json:"id"`
	StoryID           string                                 `gorm:"type:uuid;not null;index" json:"storyId"`
	SaleAmount        float64                                `gorm:"not null" json:"saleAmount"`
	RoyaltyPercentage float64                                `gorm:"not null" json:"royaltyPercentage"`
	RoyaltyAmount     float64                                `gorm:"not null" json:"royaltyAmount"`
	Distribution      datatypes.JSONSlice[RoyaltyAllocation] `json:"distribution"`

	Timestamps
}

func (p *RoyaltyPayment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

type RoyaltyAllocation struct {
	UserID        string  `json:"userId"`
	FID           int64   `json:"fid"`
	Address       string  `json:"address"`
	ShareAmount   int64   `json:"shareAmount"`
	RoyaltyAmount float64 `json:"royaltyAmount"`
	Percentage    float64 `json:"percentage"`
}
