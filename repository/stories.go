package repository

import (
	"context"
	"time"

	"lore-machine/models"

	"gorm.io/gorm"
)

func (s *GormStore) CreateStory(ctx context.Context, story *models.Story) error {
	return translate(s.conn(ctx).Create(story).Error)
}

func (s *GormStore) GetStory(ctx context.Context, id string) (*models.Story, error) {
	var story models.Story
	if err := s.conn(ctx).First(&story, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &story, nil
}

// ReserveLineNumber bumps line_count with a conditional update and returns the
// new value, which is the line number the caller owns.
func (s *GormStore) ReserveLineNumber(ctx context.Context, storyID string, lineCap int) (int, error) {
	db := s.conn(ctx)
	res := db.Model(&models.Story{}).
		Where("id = ? AND is_complete = ? AND line_count < ?", storyID, false, lineCap).
		UpdateColumn("line_count", gorm.Expr("line_count + 1"))
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetStory(ctx, storyID); err != nil {
			return 0, err
		}
		return 0, ErrStoryFull
	}

	var story models.Story
	if err := db.Select("line_count").First(&story, "id = ?", storyID).Error; err != nil {
		return 0, translate(err)
	}
	return story.LineCount, nil
}

// MarkStoryComplete flips is_complete once the cap is reached. Reports whether this call did it.
func (s *GormStore) MarkStoryComplete(ctx context.Context, storyID string, lineCap int) (bool, error) {
	res := s.conn(ctx).Model(&models.Story{}).
		Where("id = ? AND is_complete = ? AND line_count >= ?", storyID, false, lineCap).
		UpdateColumn("is_complete", true)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) AddStoryVotes(ctx context.Context, storyID string, amount int64) error {
	res := s.conn(ctx).Model(&models.Story{}).Where("id = ?", storyID).
		UpdateColumn("total_votes", gorm.Expr("total_votes + ?", amount))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStories returns stories by total votes with their approved lines and authors.
func (s *GormStore) ListStories(ctx context.Context, q StoryQuery) ([]models.Story, error) {
	db := s.conn(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_approved = ?", true).Order("line_number ASC")
		}).
		Preload("Lines.Author")
	if !q.IncludeComplete {
		db = db.Where("is_complete = ?", false)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}

	var stories []models.Story
	if err := db.Order("total_votes DESC").Order("created_at ASC").Find(&stories).Error; err != nil {
		return nil, translate(err)
	}
	return stories, nil
}

// ReserveMint moves a complete story that is unminted, or whose master token
// is already minted, into the pending state.
func (s *GormStore) ReserveMint(ctx context.Context, storyID string) (bool, error) {
	res := s.conn(ctx).Model(&models.Story{}).
		Where("id = ? AND is_complete = ? AND mint_status IN ?", storyID, true,
			[]models.MintStatus{models.MintStatusNone, models.MintStatusMaster}).
		UpdateColumn("mint_status", models.MintStatusPending)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseMint hands a pending story back. Stories that already carry a master
// token go to master_minted so the next attempt does not mint it again.
func (s *GormStore) ReleaseMint(ctx context.Context, storyID string) error {
	return translate(s.conn(ctx).Model(&models.Story{}).
		Where("id = ? AND mint_status = ?", storyID, models.MintStatusPending).
		UpdateColumn("mint_status", gorm.Expr("CASE WHEN nft_token_id IS NULL THEN ? ELSE ? END",
			models.MintStatusNone, models.MintStatusMaster)).Error)
}

// RecordMasterMint stores the master token of a pending story before its shares are minted.
func (s *GormStore) RecordMasterMint(ctx context.Context, storyID string, tokenID int64, metadataURI string) error {
	res := s.conn(ctx).Model(&models.Story{}).
		Where("id = ? AND mint_status = ? AND nft_token_id IS NULL", storyID, models.MintStatusPending).
		UpdateColumns(map[string]any{
			"nft_token_id": tokenID,
			"metadata_uri": metadataURI,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CompleteMint(ctx context.Context, storyID string, tokenID int64, metadataURI string) error {
	res := s.conn(ctx).Model(&models.Story{}).
		Where("id = ? AND mint_status = ?", storyID, models.MintStatusPending).
		UpdateColumns(map[string]any{
			"mint_status":  models.MintStatusMinted,
			"nft_token_id": tokenID,
			"metadata_uri": metadataURI,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NextMasterTokenID is the local token sequence used when no mint relay assigns ids.
func (s *GormStore) NextMasterTokenID(ctx context.Context) (int64, error) {
	var maxID int64
	if err := s.conn(ctx).Model(&models.Story{}).
		Select("COALESCE(MAX(nft_token_id), 0)").Scan(&maxID).Error; err != nil {
		return 0, translate(err)
	}
	return maxID + 1, nil
}

func (s *GormStore) CreateLine(ctx context.Context, line *models.StoryLine) error {
	return translate(s.conn(ctx).Create(line).Error)
}

func (s *GormStore) GetLine(ctx context.Context, id string) (*models.StoryLine, error) {
	var line models.StoryLine
	if err := s.conn(ctx).First(&line, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &line, nil
}

func (s *GormStore) CountLinesSince(ctx context.Context, authorID string, since time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.StoryLine{}).
		Where("author_id = ? AND created_at >= ?", authorID, since).
		Count(&n).Error
	return n, translate(err)
}

// AddLineVotes increments vote_count atomically and returns the new total.
func (s *GormStore) AddLineVotes(ctx context.Context, lineID string, amount int64) (int64, error) {
	db := s.conn(ctx)
	res := db.Model(&models.StoryLine{}).Where("id = ?", lineID).
		UpdateColumn("vote_count", gorm.Expr("vote_count + ?", amount))
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	var line models.StoryLine
	if err := db.Select("vote_count").First(&line, "id = ?", lineID).Error; err != nil {
		return 0, translate(err)
	}
	return line.VoteCount, nil
}

// ApproveLine is the one-shot pending -> approved transition. Exactly one caller sees true.
func (s *GormStore) ApproveLine(ctx context.Context, lineID string, threshold int64, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.StoryLine{}).
		Where("id = ? AND is_approved = ? AND vote_count >= ?", lineID, false, threshold).
		UpdateColumns(map[string]any{"is_approved": true, "approved_at": at})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ListLines(ctx context.Context, storyID string) ([]models.StoryLine, error) {
	var lines []models.StoryLine
	err := s.conn(ctx).Where("story_id = ?", storyID).Order("line_number ASC").Find(&lines).Error
	return lines, translate(err)
}

// RecentApprovedLines returns the author's newest canon lines.
func (s *GormStore) RecentApprovedLines(ctx context.Context, authorID string, limit int) ([]models.StoryLine, error) {
	var lines []models.StoryLine
	err := s.conn(ctx).
		Where("author_id = ? AND is_approved = ?", authorID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&lines).Error
	return lines, translate(err)
}
