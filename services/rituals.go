// services/rituals.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"
	"lore-machine/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ChallengeStatus string

const (
	ChallengeUpcoming  ChallengeStatus = "upcoming"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"

	ChallengeLength = 7 * 24 * time.Hour
	// TopSubmissionsShown is how many entries the current challenge view lists.
	TopSubmissionsShown = 10
)

// ChallengeState derives a challenge's status from its window. Both ends are inclusive.
func ChallengeState(now, start, end time.Time) ChallengeStatus {
	switch {
	case now.Before(start):
		return ChallengeUpcoming
	case now.After(end):
		return ChallengeCompleted
	default:
		return ChallengeActive
	}
}

// RitualService runs the daily prompt and the weekly challenge.
type RitualService struct {
	store  repository.Store
	cfg    *config.Config
	bank   *config.RitualBank
	writer PromptWriter
	badges *BadgeService
	log    *zap.SugaredLogger
	now    Clock
}

// NewRitualService wires the service. writer may be nil, in which case prompts
// always come from the bank.
func NewRitualService(store repository.Store, cfg *config.Config, bank *config.RitualBank, writer PromptWriter, badges *BadgeService, log *zap.SugaredLogger, now Clock) *RitualService {
	return &RitualService{store: store, cfg: cfg, bank: bank, writer: writer, badges: badges, log: log, now: now}
}

type ChallengeView struct {
	models.WeeklyChallenge
	Status          ChallengeStatus              `json:"status"`
	DaysRemaining   int                          `json:"daysRemaining"`
	SubmissionCount int64                        `json:"submissionCount"`
	TopSubmissions  []models.ChallengeSubmission `json:"topSubmissions"`
}

type ChallengeWinner struct {
	ChallengeID  string `json:"challengeId"`
	WinnerFID    int64  `json:"winnerFid"`
	SubmissionID string `json:"submissionId,omitempty"`
}

// FallbackPrompt picks the bank prompt for now's calendar day. It never touches the store.
func (s *RitualService) FallbackPrompt(now time.Time) string {
	prompts := s.bank.DailyPrompts
	return prompts[now.In(s.cfg.Location).YearDay()%len(prompts)]
}

// WeeklyTheme picks the bank theme for now's ISO week.
func (s *RitualService) WeeklyTheme(now time.Time) config.WeeklyTheme {
	_, week := now.In(s.cfg.Location).ISOWeek()
	return s.bank.WeeklyThemes[week%len(s.bank.WeeklyThemes)]
}

// TodayPrompt returns today's prompt, creating it from the bank if nothing generated it yet.
func (s *RitualService) TodayPrompt(ctx context.Context) (*models.DailyPrompt, error) {
	now := s.now()
	day := utils.DayKey(now, s.cfg.Location)
	prompt, err := s.store.GetDailyPrompt(ctx, day)
	if err == nil {
		return prompt, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.createPrompt(ctx, day, s.FallbackPrompt(now))
}

// GenerateDailyPrompt creates today's prompt, asking the prompt writer for a
// fresh one when configured. An existing prompt is returned untouched.
func (s *RitualService) GenerateDailyPrompt(ctx context.Context) (*models.DailyPrompt, error) {
	now := s.now()
	day := utils.DayKey(now, s.cfg.Location)
	if existing, err := s.store.GetDailyPrompt(ctx, day); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	text := s.FallbackPrompt(now)
	if s.writer != nil {
		generated, err := s.writer.WritePrompt(ctx, text)
		switch {
		case err != nil:
			s.log.Warnf("⚠️ [RITUALS] prompt writer failed, using bank prompt: %v", err)
		case strings.TrimSpace(generated) != "":
			text = strings.TrimSpace(generated)
		}
	}
	return s.createPrompt(ctx, day, text)
}

func (s *RitualService) createPrompt(ctx context.Context, day, text string) (*models.DailyPrompt, error) {
	prompt := &models.DailyPrompt{Day: day, Prompt: text}
	err := s.store.CreateDailyPrompt(ctx, prompt)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.store.GetDailyPrompt(ctx, day)
	}
	if err != nil {
		return nil, err
	}
	s.log.Infof("🌅 [RITUALS] prompt for %s: %q", day, text)
	return prompt, nil
}

// CreateChallenge opens a weekly challenge. start defaults to now, end to start plus seven days.
func (s *RitualService) CreateChallenge(ctx context.Context, theme, prompt string, start, end *time.Time) (*models.WeeklyChallenge, error) {
	theme = strings.TrimSpace(theme)
	prompt = strings.TrimSpace(prompt)
	if theme == "" || prompt == "" {
		return nil, Invalid("missing_theme", "theme and prompt are required")
	}

	startAt := s.now()
	if start != nil {
		startAt = start.UTC()
	}
	endAt := startAt.Add(ChallengeLength)
	if end != nil {
		endAt = end.UTC()
	}
	if !endAt.After(startAt) {
		return nil, Invalid("invalid_window", "endDate must be after startDate")
	}

	challenge := &models.WeeklyChallenge{Theme: theme, Prompt: prompt, StartDate: startAt, EndDate: endAt}
	if err := s.store.CreateChallenge(ctx, challenge); err != nil {
		return nil, err
	}
	s.log.Infof("🏁 [RITUALS] challenge %s %q runs %s → %s", challenge.ID, theme, startAt.Format(time.RFC3339), endAt.Format(time.RFC3339))
	return challenge, nil
}

// OpenWeeklyChallenge starts this week's bank challenge unless one is already running.
func (s *RitualService) OpenWeeklyChallenge(ctx context.Context) (*models.WeeklyChallenge, error) {
	now := s.now()
	active, err := s.store.ActiveChallenge(ctx, now)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	theme := s.WeeklyTheme(now)
	return s.CreateChallenge(ctx, theme.Theme, theme.Prompt, nil, nil)
}

// CurrentChallenge returns the active challenge with its leaders, or nil when none is running.
func (s *RitualService) CurrentChallenge(ctx context.Context) (*ChallengeView, error) {
	now := s.now()
	challenge, err := s.store.ActiveChallenge(ctx, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	top, err := s.store.TopSubmissions(ctx, challenge.ID, TopSubmissionsShown)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountSubmissions(ctx, challenge.ID)
	if err != nil {
		return nil, err
	}
	return &ChallengeView{
		WeeklyChallenge: *challenge,
		Status:          ChallengeState(now, challenge.StartDate, challenge.EndDate),
		DaysRemaining:   int(math.Ceil(challenge.EndDate.Sub(now).Hours() / 24)),
		SubmissionCount: count,
		TopSubmissions:  top,
	}, nil
}

// SubmitToChallenge enters one of the caller's own lines into the running challenge.
func (s *RitualService) SubmitToChallenge(ctx context.Context, userID, lineID string) (*models.ChallengeSubmission, error) {
	if !validID(lineID) {
		return nil, NotFound("line_not_found", "Line not found")
	}
	line, err := s.store.GetLine(ctx, lineID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("line_not_found", "Line not found")
	}
	if err != nil {
		return nil, err
	}
	if line.AuthorID != userID {
		return nil, Forbidden("not_line_author", "Line does not belong to user")
	}

	challenge, err := s.store.ActiveChallenge(ctx, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, Invalid("no_active_challenge", "No active challenge")
	}
	if err != nil {
		return nil, err
	}

	sub := &models.ChallengeSubmission{ChallengeID: challenge.ID, UserID: userID, LineID: line.ID}
	if err := s.store.CreateChallengeSubmission(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, Conflict("already_submitted", "Already submitted to this challenge")
		}
		return nil, err
	}
	s.log.Infof("🎯 [RITUALS] user %s entered line %s into challenge %s", userID, line.ID, challenge.ID)
	return sub, nil
}

// SelectWinner picks the submission whose line has the most votes once the
// challenge has ended. Calling it again returns the winner already recorded. A challenge without submissions
// yields (nil, nil).
func (s *RitualService) SelectWinner(ctx context.Context, challengeID string) (*ChallengeWinner, error) {
	if !validID(challengeID) {
		return nil, NotFound("challenge_not_found", "challenge not found")
	}
	challenge, err := s.store.GetChallenge(ctx, challengeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("challenge_not_found", "challenge not found")
	}
	if err != nil {
		return nil, err
	}
	if challenge.WinnerFID != nil {
		return &ChallengeWinner{ChallengeID: challenge.ID, WinnerFID: *challenge.WinnerFID}, nil
	}
	if ChallengeState(s.now(), challenge.StartDate, challenge.EndDate) != ChallengeCompleted {
		return nil, Conflict("challenge_not_ended", "Challenge is still open for votes")
	}

	top, err := s.store.TopSubmissions(ctx, challengeID, 1)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, nil
	}
	winning := top[0]
	if winning.Line == nil {
		return nil, fmt.Errorf("submission %s has no line", winning.ID)
	}
	author, err := s.store.GetUser(ctx, winning.Line.AuthorID)
	if err != nil {
		return nil, err
	}

	var set bool
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		set, err = tx.SetChallengeWinner(ctx, challengeID, author.FID)
		if err != nil || !set {
			return err
		}
		return enqueueEffect(ctx, tx, models.EffectNotify, "notify:challenge_winner:"+challengeID, NotifyPayload{
			FIDs:      []int64{author.FID},
			Title:     "You won the weekly challenge 🏆",
			Body:      fmt.Sprintf("Your line won \"%s\".", challenge.Theme),
			TargetURL: fmt.Sprintf("%s/story/%s", s.cfg.PublicURL, winning.Line.StoryID),
		}, s.now())
	})
	if err != nil {
		return nil, err
	}
	if !set {
		// someone else recorded it first
		current, err := s.store.GetChallenge(ctx, challengeID)
		if err != nil {
			return nil, err
		}
		if current.WinnerFID == nil {
			return nil, fmt.Errorf("challenge %s winner missing after CAS miss", challengeID)
		}
		return &ChallengeWinner{ChallengeID: challengeID, WinnerFID: *current.WinnerFID}, nil
	}

	s.log.Infof("🏆 [RITUALS] challenge %s won by fid %d (submission %s)", challengeID, author.FID, winning.ID)
	s.badges.Evaluate(ctx, author.ID)
	return &ChallengeWinner{ChallengeID: challengeID, WinnerFID: author.FID, SubmissionID: winning.ID}, nil
}

// ProcessCompletedChallenges selects winners for every ended challenge that has none.
func (s *RitualService) ProcessCompletedChallenges(ctx context.Context) ([]ChallengeWinner, error) {
	ended, err := s.store.EndedChallengesWithoutWinner(ctx, s.now())
	if err != nil {
		return nil, err
	}
	var (
		results []ChallengeWinner
		errs    []error
	)
	for _, ch := range ended {
		w, err := s.SelectWinner(ctx, ch.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("challenge %s: %w", ch.ID, err))
			continue
		}
		if w != nil {
			results = append(results, *w)
		}
	}
	return results, errors.Join(errs...)
}

// GetDailyPrompt handles GET /rituals/daily-prompt.
func (s *RitualService) GetDailyPrompt(c *fiber.Ctx) error {
	prompt, err := s.TodayPrompt(c.UserContext())
	if err != nil {
		return writeError(c, s.log, err)
	}

	resp := fiber.Map{"prompt": prompt, "userStreak": nil}
	if id := callerID(c); id != "" {
		if u, err := s.store.GetUser(c.UserContext(), id); err == nil {
			resp["userStreak"] = fiber.Map{
				"currentStreak":      u.CurrentStreak,
				"longestStreak":      u.LongestStreak,
				"lastSubmissionDate": u.LastSubmissionDate,
			}
		}
	}
	return c.JSON(resp)
}

// GetWeeklyChallenge handles GET /rituals/weekly-challenge.
func (s *RitualService) GetWeeklyChallenge(c *fiber.Ctx) error {
	view, err := s.CurrentChallenge(c.UserContext())
	if err != nil {
		return writeError(c, s.log, err)
	}
	if view == nil {
		return c.JSON(fiber.Map{"challenge": nil, "message": "No active challenge at this time"})
	}
	return c.JSON(fiber.Map{"challenge": view})
}

// SubmitWeeklyChallenge handles POST /rituals/weekly-challenge.
func (s *RitualService) SubmitWeeklyChallenge(c *fiber.Ctx) error {
	var req struct {
		LineID string `json:"lineId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.LineID == "" {
		return writeError(c, s.log, Invalid("missing_line", "lineId is required"))
	}
	sub, err := s.SubmitToChallenge(c.UserContext(), callerID(c), req.LineID)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"submission": sub})
}

// CreateWeeklyChallenge handles POST /admin/rituals/weekly-challenge.
func (s *RitualService) CreateWeeklyChallenge(c *fiber.Ctx) error {
	var req struct {
		Theme     string     `json:"theme"`
		Prompt    string     `json:"prompt"`
		StartDate *time.Time `json:"startDate"`
		EndDate   *time.Time `json:"endDate"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	challenge, err := s.CreateChallenge(c.UserContext(), req.Theme, req.Prompt, req.StartDate, req.EndDate)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"challenge": challenge})
}

// SelectChallengeWinner handles POST /admin/rituals/weekly-challenge/:id/winner.
func (s *RitualService) SelectChallengeWinner(c *fiber.Ctx) error {
	winner, err := s.SelectWinner(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, s.log, err)
	}
	if winner == nil {
		return c.JSON(fiber.Map{"winner": nil, "message": "challenge has no submissions"})
	}
	return c.JSON(fiber.Map{"winner": winner})
}
