package repository

import (
	"lore-machine/models"

	"gorm.io/gorm"
)

// AllModels lists every table in dependency order.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.Story{},
		&models.StoryLine{},
		&models.Vote{},
		&models.Claim{},
		&models.StoryShare{},
		&models.RoyaltyPayment{},
		&models.WeeklyChallenge{},
		&models.ChallengeSubmission{},
		&models.DailyPrompt{},
		&models.OutboxEffect{},
		&models.UserBadge{},
		&models.CustodyAddress{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
