package repository

import (
	"context"
	"sort"

	"lore-machine/models"
)

// CreateVote inserts a vote. A second vote by the same voter on the same line yields ErrDuplicate.
func (s *GormStore) CreateVote(ctx context.Context, vote *models.Vote) error {
	return translate(s.conn(ctx).Create(vote).Error)
}

func (s *GormStore) CountVotesBy(ctx context.Context, voterID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Vote{}).Where("voter_id = ?", voterID).Count(&n).Error
	return n, translate(err)
}

// ContributorStats returns, for each distinct author of an approved line in the
// story, the approved line count, the sum of every vote on their lines in the
// story, and their current lore points. Ordered by user id.
func (s *GormStore) ContributorStats(ctx context.Context, storyID string) ([]ContributorStat, error) {
	db := s.conn(ctx)

	var approved []struct {
		AuthorID string
		Approved int64
	}
	if err := db.Model(&models.StoryLine{}).
		Select("author_id, COUNT(*) AS approved").
		Where("story_id = ? AND is_approved = ?", storyID, true).
		Group("author_id").
		Scan(&approved).Error; err != nil {
		return nil, translate(err)
	}
	if len(approved) == 0 {
		return nil, nil
	}

	var sums []struct {
		AuthorID string
		Total    int64
	}
	if err := db.Table("votes").
		Select("story_lines.author_id AS author_id, COALESCE(SUM(votes.amount), 0) AS total").
		Joins("JOIN story_lines ON story_lines.id = votes.line_id").
		Where("story_lines.story_id = ?", storyID).
		Group("story_lines.author_id").
		Scan(&sums).Error; err != nil {
		return nil, translate(err)
	}
	voteSum := make(map[string]int64, len(sums))
	for _, row := range sums {
		voteSum[row.AuthorID] = row.Total
	}

	ids := make([]string, 0, len(approved))
	for _, row := range approved {
		ids = append(ids, row.AuthorID)
	}
	users, err := s.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	stats := make([]ContributorStat, 0, len(approved))
	for _, row := range approved {
		u := users[row.AuthorID]
		stats = append(stats, ContributorStat{
			UserID:        row.AuthorID,
			FID:           u.FID,
			LorePoints:    u.LorePoints,
			ApprovedLines: row.Approved,
			VoteSum:       voteSum[row.AuthorID],
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].UserID < stats[j].UserID })
	return stats, nil
}
