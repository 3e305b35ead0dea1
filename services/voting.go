// services/voting.go
package services

import (
	"context"
	"errors"
	"fmt"

	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const MaxVoteAmount = 1000

type VotingService struct {
	store  repository.Store
	cfg    *config.Config
	badges *BadgeService
	log    *zap.SugaredLogger
	now    Clock
}

func NewVotingService(store repository.Store, cfg *config.Config, badges *BadgeService, log *zap.SugaredLogger, now Clock) *VotingService {
	return &VotingService{store: store, cfg: cfg, badges: badges, log: log, now: now}
}

type VoteResult struct {
	Vote      *models.Vote `json:"vote"`
	VoteCount int64        `json:"voteCount"`
	Approved  bool         `json:"approved"`
	Reward    int64        `json:"reward,omitempty"`
}

// Vote records the voter's single vote on a line and, if it pushes the line
// over the threshold, approves the line and credits its author.
func (s *VotingService) Vote(ctx context.Context, voterID, lineID string, amount int64) (*VoteResult, error) {
	if amount < 1 || amount > MaxVoteAmount {
		return nil, Invalid("invalid_amount", fmt.Sprintf("amount must be between 1 and %d", MaxVoteAmount))
	}

	if !validID(lineID) {
		return nil, NotFound("line_not_found", "line not found")
	}

	now := s.now()
	var (
		result   VoteResult
		authorID string
	)

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		line, err := tx.GetLine(ctx, lineID)
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound("line_not_found", "line not found")
		}
		if err != nil {
			return err
		}

		vote := &models.Vote{VoterID: voterID, LineID: line.ID, Amount: amount, CreatedAt: now}
		if err := tx.CreateVote(ctx, vote); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return Conflict("already_voted", "you already voted on this line")
			}
			return err
		}

		count, err := tx.AddLineVotes(ctx, line.ID, amount)
		if err != nil {
			return err
		}
		if err := tx.AddStoryVotes(ctx, line.StoryID, amount); err != nil {
			return err
		}
		result.Vote = vote
		result.VoteCount = count

		approved, err := tx.ApproveLine(ctx, line.ID, s.cfg.VoteThreshold, now)
		if err != nil || !approved {
			return err
		}

		reward := amount
		if s.cfg.ApprovalRewardMode == config.RewardVoteCount {
			reward = count
		}
		if err := tx.AddLorePoints(ctx, line.AuthorID, reward); err != nil {
			return err
		}
		if err := enqueueEffect(ctx, tx, models.EffectClaimSync, "claim_sync:line:"+line.ID,
			ClaimSyncPayload{UserID: line.AuthorID, LineID: line.ID}, now); err != nil {
			return err
		}

		author, err := tx.GetUser(ctx, line.AuthorID)
		if err != nil {
			return err
		}
		if err := enqueueEffect(ctx, tx, models.EffectNotify, "notify:line_approved:"+line.ID, NotifyPayload{
			FIDs:      []int64{author.FID},
			Title:     "Your line is canon ✨",
			Body:      fmt.Sprintf("Line %d reached %d votes and earned you %d LORE.", line.LineNumber, count, reward),
			TargetURL: fmt.Sprintf("%s/story/%s", s.cfg.PublicURL, line.StoryID),
		}, now); err != nil {
			return err
		}

		result.Approved = true
		result.Reward = reward
		authorID = line.AuthorID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Approved {
		s.log.Infof("🏅 [VOTE] line %s approved at %d votes, author %s credited %d", lineID, result.VoteCount, authorID, result.Reward)
		s.badges.Evaluate(ctx, authorID)
	}
	return &result, nil
}

// CastVote handles POST /vote.
func (s *VotingService) CastVote(c *fiber.Ctx) error {
	var req struct {
		LineID string `json:"lineId"`
		Amount int64  `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.LineID == "" {
		return writeError(c, s.log, Invalid("missing_line", "lineId is required"))
	}

	res, err := s.Vote(c.UserContext(), callerID(c), req.LineID, req.Amount)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(res)
}
