package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"lore-machine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByFID(ctx context.Context, fid int64) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, "fid = ?", fid).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// EnsureUser returns the user for fid, creating it on first sight (idempotent).
func (s *GormStore) EnsureUser(ctx context.Context, fid int64, username string) (*models.User, error) {
	u, err := s.GetUserByFID(ctx, fid)
	if err == nil {
		if username != "" && u.Username != username {
			if err := s.conn(ctx).Model(u).Update("username", username).Error; err != nil {
				return nil, translate(err)
			}
		}
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u = &models.User{FID: fid, Username: username}
	if err := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(u).Error; err != nil {
		return nil, translate(err)
	}
	// lost a race with a concurrent first request
	return s.GetUserByFID(ctx, fid)
}

// LockUser loads the user row with SELECT ... FOR UPDATE. Only meaningful inside Transaction.
func (s *GormStore) LockUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) UpdateStreak(ctx context.Context, id string, current, longest int, at time.Time) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"current_streak":       current,
		"longest_streak":       longest,
		"last_submission_date": at,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLorePoints applies delta with an atomic increment.
func (s *GormStore) AddLorePoints(ctx context.Context, id string, delta int64) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("lore_points", gorm.Expr("lore_points + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListUsersWithPoints(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.conn(ctx).Where("lore_points > 0").Order("fid ASC").Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (s *GormStore) GetUsers(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *GormStore) UserStats(ctx context.Context, userID string) (UserStats, error) {
	var stats UserStats
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return stats, err
	}
	stats.CurrentStreak = int64(u.CurrentStreak)
	stats.LongestStreak = int64(u.LongestStreak)

	db := s.conn(ctx)
	if err := db.Model(&models.StoryLine{}).Where("author_id = ?", userID).Count(&stats.Lines).Error; err != nil {
		return stats, translate(err)
	}
	if err := db.Model(&models.StoryLine{}).
		Where("author_id = ? AND is_approved = ?", userID, true).
		Count(&stats.ApprovedLines).Error; err != nil {
		return stats, translate(err)
	}
	if err := db.Model(&models.WeeklyChallenge{}).Where("winner_fid = ?", u.FID).Count(&stats.ChallengeWins).Error; err != nil {
		return stats, translate(err)
	}
	if err := db.Model(&models.ChallengeSubmission{}).Where("user_id = ?", userID).Count(&stats.Submissions).Error; err != nil {
		return stats, translate(err)
	}
	return stats, nil
}

// SearchUsers matches usernames case-insensitively.
func (s *GormStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	db := s.conn(ctx).Model(&models.User{}).Limit(limit)
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		db = db.Where("LOWER(username) LIKE ?", "%"+q+"%")
	}
	var users []models.User
	err := db.Order("lore_points DESC").Order("fid ASC").Find(&users).Error
	return users, translate(err)
}

func (s *GormStore) SaveCustodyAddress(ctx context.Context, fid int64, address string, at time.Time) error {
	row := models.CustodyAddress{FID: fid, Address: address, ResolvedAt: at}
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fid"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "resolved_at"}),
	}).Create(&row).Error)
}

// CachedCustodyAddress returns the last address seen for fid, or "" when none.
func (s *GormStore) CachedCustodyAddress(ctx context.Context, fid int64) (string, error) {
	var row models.CustodyAddress
	err := s.conn(ctx).First(&row, "fid = ?", fid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", translate(err)
	}
	return row.Address, nil
}
