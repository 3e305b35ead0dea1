package repository

import (
	"context"

	"lore-machine/models"
)

// ReplaceStoryShares swaps the story's share table for shares in one statement pair.
func (s *GormStore) ReplaceStoryShares(ctx context.Context, storyID string, shares []models.StoryShare) error {
	db := s.conn(ctx)
	if err := db.Where("story_id = ?", storyID).Delete(&models.StoryShare{}).Error; err != nil {
		return translate(err)
	}
	if len(shares) == 0 {
		return nil
	}
	for i := range shares {
		shares[i].StoryID = storyID
	}
	return translate(db.Create(&shares).Error)
}

// ListStoryShares returns holders in token order.
func (s *GormStore) ListStoryShares(ctx context.Context, storyID string) ([]models.StoryShare, error) {
	var shares []models.StoryShare
	err := s.conn(ctx).Where("story_id = ?", storyID).Order("token_id ASC").Find(&shares).Error
	return shares, translate(err)
}

func (s *GormStore) CreateRoyaltyPayment(ctx context.Context, payment *models.RoyaltyPayment) error {
	return translate(s.conn(ctx).Create(payment).Error)
}

// ListRoyaltyPaymentsFor returns payments on stories the user holds shares in, newest first.
func (s *GormStore) ListRoyaltyPaymentsFor(ctx context.Context, userID string) ([]models.RoyaltyPayment, error) {
	var payments []models.RoyaltyPayment
	err := s.conn(ctx).
		Where("story_id IN (?)", s.conn(ctx).Model(&models.StoryShare{}).Select("story_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, translate(err)
}
