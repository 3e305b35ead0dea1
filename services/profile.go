// services/profile.go
package services

import (
	"context"
	"errors"
	"strconv"

	"lore-machine/models"
	"lore-machine/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const recentContributions = 10

type ProfileService struct {
	store  repository.Store
	badges *BadgeService
	log    *zap.SugaredLogger
}

func NewProfileService(store repository.Store, badges *BadgeService, log *zap.SugaredLogger) *ProfileService {
	return &ProfileService{store: store, badges: badges, log: log}
}

type Profile struct {
	*models.User
	Pending               int64              `json:"pending"`
	TotalContributions    int64              `json:"totalContributions"`
	ApprovedContributions int64              `json:"approvedContributions"`
	TotalVotes            int64              `json:"totalVotes"`
	ChallengeWins         int64              `json:"challengeWins"`
	Badges                []EarnedBadge      `json:"badges"`
	Contributions         []models.StoryLine `json:"contributions"`
}

// Load assembles the profile view. Pending is the points not yet covered by an open claim.
func (s *ProfileService) Load(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("user_not_found", "User not found")
	}
	if err != nil {
		return nil, err
	}

	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	open, err := s.store.SumUnclaimed(ctx, userID)
	if err != nil {
		return nil, err
	}
	votes, err := s.store.CountVotesBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentApprovedLines(ctx, userID, recentContributions)
	if err != nil {
		return nil, err
	}
	badges, err := s.badges.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := user.LorePoints - open
	if pending < 0 {
		pending = 0
	}
	return &Profile{
		User:                  user,
		Pending:               pending,
		TotalContributions:    stats.Lines,
		ApprovedContributions: stats.ApprovedLines,
		TotalVotes:            votes,
		ChallengeWins:         stats.ChallengeWins,
		Badges:                badges,
		Contributions:         recent,
	}, nil
}

// GetProfile handles GET /profile.
func (s *ProfileService) GetProfile(c *fiber.Ctx) error {
	profile, err := s.Load(c.UserContext(), callerID(c))
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"user": profile})
}

// SearchUsers handles GET /users/search?q=&limit=.
func (s *ProfileService) SearchUsers(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	users, err := s.store.SearchUsers(c.UserContext(), c.Query("q"), limit)
	if err != nil {
		return writeError(c, s.log, err)
	}

	type UserSummary struct {
		ID         string `json:"id"`
		FID        int64  `json:"fid"`
		Username   string `json:"username"`
		LorePoints int64  `json:"lorePoints"`
	}
	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = UserSummary{ID: u.ID, FID: u.FID, Username: u.Username, LorePoints: u.LorePoints}
	}
	return c.JSON(res)
}
