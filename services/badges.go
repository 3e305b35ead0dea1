package services

import (
	"context"
	"time"

	"lore-machine/models"
	"lore-machine/repository"

	"go.uber.org/zap"
)

type BadgeService struct {
	store repository.Store
	log   *zap.SugaredLogger
}

func NewBadgeService(store repository.Store, log *zap.SugaredLogger) *BadgeService {
	return &BadgeService{store: store, log: log}
}

// Evaluate checks every badge trigger against the user's stats and awards the
// ones newly met. Failures are logged; badges never fail the calling operation.
func (s *BadgeService) Evaluate(ctx context.Context, userID string) []string {
	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		s.log.Warnf("⚠️ [BADGES] stats for %s: %v", userID, err)
		return nil
	}

	var awarded []string
	for _, trigger := range models.BadgeTriggers {
		if !meetsThreshold(stats, trigger.Threshold) {
			continue
		}
		isNew, err := s.store.AwardBadge(ctx, userID, trigger.Code)
		if err != nil {
			s.log.Warnf("⚠️ [BADGES] award %s to %s: %v", trigger.Code, userID, err)
			continue
		}
		if isNew {
			awarded = append(awarded, trigger.Code)
			s.log.Infof("🎖️ [BADGES] %s → %s", trigger.Name, userID)
		}
	}
	return awarded
}

// List returns the user's badges with their definitions.
func (s *BadgeService) List(ctx context.Context, userID string) ([]EarnedBadge, error) {
	rows, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]EarnedBadge, 0, len(rows))
	for _, r := range rows {
		def, ok := models.BadgeByCode(r.Badge)
		if !ok {
			continue
		}
		out = append(out, EarnedBadge{BadgeType: def, AwardedAt: r.AwardedAt.UTC().Format(time.RFC3339)})
	}
	return out, nil
}

type EarnedBadge struct {
	models.BadgeType
	AwardedAt string `json:"awardedAt"`
}

func meetsThreshold(stats repository.UserStats, req map[string]int64) bool {
	for key, required := range req {
		var have int64
		switch key {
		case "lines":
			have = stats.Lines
		case "approved_lines":
			have = stats.ApprovedLines
		case "current_streak":
			have = stats.CurrentStreak
		case "longest_streak":
			have = stats.LongestStreak
		case "challenge_wins":
			have = stats.ChallengeWins
		case "submissions":
			have = stats.Submissions
		default:
			return false
		}
		if have < required {
			return false
		}
	}
	return true
}
