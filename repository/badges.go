package repository

import (
	"context"

	"lore-machine/models"

	"gorm.io/gorm/clause"
)

// AwardBadge grants badge to the user once. Reports whether it was newly awarded.
func (s *GormStore) AwardBadge(ctx context.Context, userID, badge string) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserBadge{UserID: userID, Badge: badge})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ListBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := s.conn(ctx).Where("user_id = ?", userID).Order("awarded_at ASC").Find(&badges).Error
	return badges, translate(err)
}
