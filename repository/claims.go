package repository

import (
	"context"
	"time"

	"lore-machine/models"

	"gorm.io/datatypes"
)

func (s *GormStore) SumUnclaimed(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.conn(ctx).Model(&models.Claim{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND is_claimed = ?", userID, false).
		Scan(&total).Error
	return total, translate(err)
}

func (s *GormStore) CreateClaim(ctx context.Context, claim *models.Claim) error {
	return translate(s.conn(ctx).Create(claim).Error)
}

func (s *GormStore) ListClaims(ctx context.Context, userID string, unclaimedOnly bool) ([]models.Claim, error) {
	db := s.conn(ctx).Where("user_id = ?", userID)
	if unclaimedOnly {
		db = db.Where("is_claimed = ?", false)
	}
	var claims []models.Claim
	err := db.Order("created_at DESC").Find(&claims).Error
	return claims, translate(err)
}

// ListUnclaimedWithAddress returns every open claim that can be put into a merkle batch.
func (s *GormStore) ListUnclaimedWithAddress(ctx context.Context) ([]models.Claim, error) {
	var claims []models.Claim
	err := s.conn(ctx).
		Where("is_claimed = ? AND address <> ?", false, "").
		Order("created_at ASC").Order("id ASC").
		Find(&claims).Error
	return claims, translate(err)
}

// GetClaims returns the caller's open claims among ids. Unknown or foreign ids are dropped.
func (s *GormStore) GetClaims(ctx context.Context, userID string, ids []string) ([]models.Claim, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var claims []models.Claim
	err := s.conn(ctx).
		Where("user_id = ? AND is_claimed = ? AND id IN ?", userID, false, ids).
		Order("created_at ASC").
		Find(&claims).Error
	return claims, translate(err)
}

// ListClaimsSince returns the user's claims after the cursor, oldest first.
// Ties on created_at are broken by id so no claim is skipped or repeated.
func (s *GormStore) ListClaimsSince(ctx context.Context, userID string, after ClaimCursor) ([]models.Claim, error) {
	var claims []models.Claim
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Where("created_at > ? OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID).
		Order("created_at ASC").Order("id ASC").
		Find(&claims).Error
	return claims, translate(err)
}

func (s *GormStore) SetClaimProof(ctx context.Context, id, root string, proof []string) error {
	return translate(s.conn(ctx).Model(&models.Claim{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"merkle_root": root,
		"proof":       datatypes.NewJSONSlice(proof),
	}).Error)
}

// SettleClaim marks the claim paid. A claim settles exactly once; the loser of a
// race, or a repeat call, gets ErrAlreadyApplied.
func (s *GormStore) SettleClaim(ctx context.Context, id, txHash string, at time.Time) (*models.Claim, error) {
	db := s.conn(ctx)
	res := db.Model(&models.Claim{}).
		Where("id = ? AND is_claimed = ?", id, false).
		UpdateColumns(map[string]any{
			"is_claimed": true,
			"tx_hash":    txHash,
			"claimed_at": at,
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}

	var claim models.Claim
	if err := db.First(&claim, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	if res.RowsAffected == 0 {
		return &claim, ErrAlreadyApplied
	}
	return &claim, nil
}
