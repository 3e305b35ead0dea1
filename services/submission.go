// services/submission.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"
	"lore-machine/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const MaxLineLength = 500

type SubmissionService struct {
	store   repository.Store
	cfg     *config.Config
	rituals *RitualService
	badges  *BadgeService
	log     *zap.SugaredLogger
	now     Clock
}

func NewSubmissionService(store repository.Store, cfg *config.Config, rituals *RitualService, badges *BadgeService, log *zap.SugaredLogger, now Clock) *SubmissionService {
	return &SubmissionService{store: store, cfg: cfg, rituals: rituals, badges: badges, log: log, now: now}
}

type SubmitInput struct {
	UserID  string
	StoryID string
	Content string
}

// NormalizeContent applies NFC, trims, and enforces 1..500 runes.
func NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(norm.NFC.String(raw))
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return "", Invalid("empty_content", "content must not be empty")
	}
	if n > MaxLineLength {
		return "", Invalid("content_too_long", fmt.Sprintf("content must be at most %d characters", MaxLineLength))
	}
	return content, nil
}

// Submit appends one line to a story on behalf of the user.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (*models.StoryLine, error) {
	content, err := NormalizeContent(in.Content)
	if err != nil {
		return nil, err
	}
	if in.StoryID != "" && !validID(in.StoryID) {
		return nil, NotFound("story_not_found", "story not found")
	}

	now := s.now()
	loc := s.cfg.Location
	var line *models.StoryLine

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.LockUser(ctx, in.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound("user_not_found", "user not found")
		}
		if err != nil {
			return err
		}

		today, err := tx.CountLinesSince(ctx, user.ID, utils.StartOfDay(now, loc).UTC())
		if err != nil {
			return err
		}
		if today >= int64(s.cfg.MaxLinesPerDay) {
			return RateLimited("daily_limit", fmt.Sprintf("Daily limit reached (%d lines per day)", s.cfg.MaxLinesPerDay))
		}

		storyID := in.StoryID
		if storyID == "" {
			story := &models.Story{}
			if err := tx.CreateStory(ctx, story); err != nil {
				return err
			}
			storyID = story.ID
		}

		lineNumber, err := tx.ReserveLineNumber(ctx, storyID, s.cfg.StoryLineCap)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NotFound("story_not_found", "story not found")
		case errors.Is(err, repository.ErrStoryFull):
			return Conflict("story_complete", "story is complete")
		case err != nil:
			return err
		}

		line = &models.StoryLine{
			StoryID:    storyID,
			AuthorID:   user.ID,
			Content:    content,
			LineNumber: lineNumber,
		}
		line.CreatedAt = now
		line.UpdatedAt = now
		if err := tx.CreateLine(ctx, line); err != nil {
			return err
		}

		current, longest := NextStreak(user.LastSubmissionDate, now, user.CurrentStreak, user.LongestStreak, loc)
		if err := tx.UpdateStreak(ctx, user.ID, current, longest, now); err != nil {
			return err
		}

		if err := tx.BumpDailyPrompt(ctx, utils.DayKey(now, loc), s.rituals.FallbackPrompt(now)); err != nil {
			return err
		}

		if lineNumber == s.cfg.StoryLineCap {
			completed, err := tx.MarkStoryComplete(ctx, storyID, s.cfg.StoryLineCap)
			if err != nil {
				return err
			}
			if completed {
				payload := StoryPayload{StoryID: storyID}
				if err := enqueueEffect(ctx, tx, models.EffectNFTMint, "nft_mint:story:"+storyID, payload, now); err != nil {
					return err
				}
				if err := enqueueEffect(ctx, tx, models.EffectStoryAnnounce, "story_announce:story:"+storyID, payload, now); err != nil {
					return err
				}
				s.log.Infof("📚 [SUBMIT] Story %s reached %d lines, mint and announce queued", storyID, lineNumber)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debugf("✍️ [SUBMIT] line %d of story %s by %s", line.LineNumber, line.StoryID, line.AuthorID)
	s.badges.Evaluate(ctx, in.UserID)
	return line, nil
}

// SubmitLine handles POST /submit.
func (s *SubmissionService) SubmitLine(c *fiber.Ctx) error {
	var req struct {
		StoryID string `json:"storyId"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	line, err := s.Submit(c.UserContext(), SubmitInput{
		UserID:  callerID(c),
		StoryID: req.StoryID,
		Content: req.Content,
	})
	if err != nil {
		return writeError(c, s.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"line": fiber.Map{
			"id":         line.ID,
			"content":    line.Content,
			"lineNumber": line.LineNumber,
			"storyId":    line.StoryID,
		},
	})
}
