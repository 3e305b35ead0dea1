package repository

import (
	"context"
	"time"

	"lore-machine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) GetDailyPrompt(ctx context.Context, day string) (*models.DailyPrompt, error) {
	var p models.DailyPrompt
	if err := s.conn(ctx).First(&p, "day = ?", day).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// CreateDailyPrompt inserts the day's prompt; a second prompt for the same day is ErrDuplicate.
func (s *GormStore) CreateDailyPrompt(ctx context.Context, prompt *models.DailyPrompt) error {
	return translate(s.conn(ctx).Create(prompt).Error)
}

// BumpDailyPrompt increments the day's submission counter, creating the row
// with fallbackPrompt when no prompt was generated yet.
func (s *GormStore) BumpDailyPrompt(ctx context.Context, day, fallbackPrompt string) error {
	row := models.DailyPrompt{Day: day, Prompt: fallbackPrompt, SubmissionCount: 1}
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{
			"submission_count": gorm.Expr("daily_prompts.submission_count + 1"),
		}),
	}).Create(&row).Error)
}

func (s *GormStore) CreateChallenge(ctx context.Context, challenge *models.WeeklyChallenge) error {
	return translate(s.conn(ctx).Create(challenge).Error)
}

func (s *GormStore) GetChallenge(ctx context.Context, id string) (*models.WeeklyChallenge, error) {
	var c models.WeeklyChallenge
	if err := s.conn(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ActiveChallenge returns the most recently started challenge whose window contains now.
func (s *GormStore) ActiveChallenge(ctx context.Context, now time.Time) (*models.WeeklyChallenge, error) {
	var c models.WeeklyChallenge
	err := s.conn(ctx).
		Where("start_date <= ? AND end_date >= ?", now, now).
		Order("start_date DESC").
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) CreateChallengeSubmission(ctx context.Context, sub *models.ChallengeSubmission) error {
	return translate(s.conn(ctx).Create(sub).Error)
}

// TopSubmissions orders by the submitted line's vote count, earliest submission first on ties.
func (s *GormStore) TopSubmissions(ctx context.Context, challengeID string, limit int) ([]models.ChallengeSubmission, error) {
	var subs []models.ChallengeSubmission
	db := s.conn(ctx).
		Joins("Line").
		Preload("User").
		Where("challenge_submissions.challenge_id = ?", challengeID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Table: "Line", Name: "vote_count"}, Desc: true},
			{Column: clause.Column{Table: "challenge_submissions", Name: "created_at"}},
			{Column: clause.Column{Table: "challenge_submissions", Name: "id"}},
		}})
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&subs).Error
	return subs, translate(err)
}

func (s *GormStore) CountSubmissions(ctx context.Context, challengeID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.ChallengeSubmission{}).Where("challenge_id = ?", challengeID).Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) EndedChallengesWithoutWinner(ctx context.Context, now time.Time) ([]models.WeeklyChallenge, error) {
	var out []models.WeeklyChallenge
	err := s.conn(ctx).
		Where("end_date < ? AND winner_fid IS NULL", now).
		Order("end_date ASC").
		Find(&out).Error
	return out, translate(err)
}

// SetChallengeWinner records the winner once. Reports whether this call set it.
func (s *GormStore) SetChallengeWinner(ctx context.Context, id string, fid int64) (bool, error) {
	res := s.conn(ctx).Model(&models.WeeklyChallenge{}).
		Where("id = ? AND winner_fid IS NULL", id).
		UpdateColumn("winner_fid", fid)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetChallenge(ctx, id); err != nil {
			return false, err
		}
	}
	return res.RowsAffected == 1, nil
}
