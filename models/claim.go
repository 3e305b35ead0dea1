package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Claim is a slice of a user's lore points waiting to be paid out as tokens.
// Amount is fixed at creation.
type Claim struct {
	ID         string                      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string                      `gorm:"type:uuid;not null;index" json:"userId"`
	Amount     int64                       `gorm:"not null" json:"amount"`
	Address    string                      `gorm:"size:64" json:"address"`
	IsClaimed  bool                        `gorm:"not null;default:false;index" json:"isClaimed"`
	MerkleRoot string                      `gorm:"size:80" json:"merkleRoot,omitempty"`
	Proof      datatypes.JSONSlice[string] `json:"proof,omitempty"`
	TxHash     string                      `gorm:"size:80" json:"txHash,omitempty"`
	ClaimedAt  *time.Time                  `json:"claimedAt,omitempty"`

	Timestamps
}

func (c *Claim) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
