package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EffectKind string

const (
	EffectClaimSync     EffectKind = "claim_sync"
	EffectNFTMint       EffectKind = "nft_mint"
	EffectStoryAnnounce EffectKind = "story_announce"
	EffectNotify        EffectKind = "notify"
)

type EffectStatus string

const (
	EffectPending EffectStatus = "pending"
	EffectDone    EffectStatus = "done"
	EffectDead    EffectStatus = "dead"
)

// OutboxEffect is a side effect recorded in the same transaction as the
// ledger change that caused it, and executed later by the outbox worker.
type OutboxEffect struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	Kind           EffectKind     `gorm:"size:32;not null;index" json:"kind"`
	IdempotencyKey string         `gorm:"size:160;uniqueIndex;not null" json:"idempotencyKey"`
	Payload        datatypes.JSON `json:"payload"`
	Status         EffectStatus   `gorm:"size:16;not null;default:'pending';index:idx_outbox_due,priority:1" json:"status"`
	Attempts       int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts    int            `gorm:"not null" json:"maxAttempts"`
	NextAttemptAt  time.Time      `gorm:"not null;index:idx_outbox_due,priority:2" json:"nextAttemptAt"`
	LastError      string         `gorm:"type:text" json:"lastError,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`

	Timestamps
}

func (e *OutboxEffect) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	if e.Status == "" {
		e.Status = EffectPending
	}
	return nil
}
