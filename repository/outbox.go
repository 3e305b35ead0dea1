package repository

import (
	"context"
	"time"

	"lore-machine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnqueueEffect records an effect once per idempotency key. Reports whether a row was inserted.
func (s *GormStore) EnqueueEffect(ctx context.Context, effect *models.OutboxEffect) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(effect)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClaimDueEffects leases up to limit pending effects whose time has come by
// pushing their next_attempt_at forward. Concurrent drainers skip locked rows.
func (s *GormStore) ClaimDueEffects(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxEffect, error) {
	var due []models.OutboxEffect
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", models.EffectPending, now).
			Order("next_attempt_at ASC").
			Limit(limit).
			Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		ids := make([]string, len(due))
		for i := range due {
			ids[i] = due[i].ID
		}
		return tx.Model(&models.OutboxEffect{}).Where("id IN ?", ids).
			UpdateColumn("next_attempt_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return due, nil
}

func (s *GormStore) MarkEffectDone(ctx context.Context, id string, at time.Time) error {
	return translate(s.conn(ctx).Model(&models.OutboxEffect{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"status":       models.EffectDone,
		"completed_at": at,
		"last_error":   "",
	}).Error)
}

func (s *GormStore) MarkEffectFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error {
	status := models.EffectPending
	if dead {
		status = models.EffectDead
	}
	return translate(s.conn(ctx).Model(&models.OutboxEffect{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"status":          status,
		"attempts":        attempts,
		"next_attempt_at": next,
		"last_error":      lastErr,
	}).Error)
}

func (s *GormStore) GetEffectByKey(ctx context.Context, key string) (*models.OutboxEffect, error) {
	var e models.OutboxEffect
	if err := s.conn(ctx).First(&e, "idempotency_key = ?", key).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}
