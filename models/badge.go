package models

import (
	"time"

	"gorm.io/gorm"
)

// BadgeType: static badge definition
type BadgeType struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Rarity      string           `json:"rarity"`
	Threshold   map[string]int64 `json:"-"` // e.g. {"approved_lines": 10}
}

// UserBadge: awarded instance, one per (user, badge)
type UserBadge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge,priority:1" json:"userId"`
	Badge     string    `gorm:"size:48;not null;uniqueIndex:idx_user_badge,priority:2" json:"badge"`
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awardedAt"`
}

func (b *UserBadge) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// BadgeTriggers lists every badge and the stat thresholds that unlock it.
var BadgeTriggers = []BadgeType{
	{
		Code:        "first-author",
		Name:        "First Author",
		Description: "Wrote your first approved line",
		Rarity:      "common",
		Threshold:   map[string]int64{"approved_lines": 1},
	},
	{
		Code:        "canonical-author",
		Name:        "Canonical Author",
		Description: "Had a line voted into canon",
		Rarity:      "common",
		Threshold:   map[string]int64{"approved_lines": 1},
	},
	{
		Code:        "co-creator",
		Name:        "Co-Creator",
		Description: "Contributing to the story",
		Rarity:      "common",
		Threshold:   map[string]int64{"lines": 1},
	},
	{
		Code:        "lore-smith",
		Name:        "Lore Smith",
		Description: "10 canonical lines",
		Rarity:      "rare",
		Threshold:   map[string]int64{"approved_lines": 10},
	},
	{
		Code:        "top-contributor",
		Name:        "Top Contributor",
		Description: "50 canonical lines",
		Rarity:      "epic",
		Threshold:   map[string]int64{"approved_lines": 50},
	},
	{
		Code:        "weekly-winner",
		Name:        "Weekly Winner",
		Description: "Won a weekly challenge",
		Rarity:      "epic",
		Threshold:   map[string]int64{"challenge_wins": 1},
	},
	{
		Code:        "ritual-master",
		Name:        "Ritual Master",
		Description: "Kept a 7+ day streak",
		Rarity:      "legendary",
		Threshold:   map[string]int64{"current_streak": 7},
	},
}

// BadgeByCode returns the trigger definition for code.
func BadgeByCode(code string) (BadgeType, bool) {
	for _, b := range BadgeTriggers {
		if b.Code == code {
			return b, true
		}
	}
	return BadgeType{}, false
}
