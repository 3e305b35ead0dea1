// Package repository is the persistence layer. Every ledger read-check-write
// sequence goes through a Store, usually inside Transaction.
package repository

import (
	"context"
	"errors"
	"time"

	"lore-machine/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrStoryFull is returned when a line number cannot be reserved because
	// the story is complete or at its cap.
	ErrStoryFull = errors.New("story is complete")
	// ErrAlreadyApplied is returned by one-shot transitions that already happened.
	ErrAlreadyApplied = errors.New("transition already applied")
)

// Store is the full set of persistence operations the services need.
type Store interface {
	// Transaction runs fn against a Store bound to a single database transaction.
	// Returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByFID(ctx context.Context, fid int64) (*models.User, error)
	EnsureUser(ctx context.Context, fid int64, username string) (*models.User, error)
	LockUser(ctx context.Context, id string) (*models.User, error)
	UpdateStreak(ctx context.Context, id string, current, longest int, at time.Time) error
	AddLorePoints(ctx context.Context, id string, delta int64) error
	ListUsersWithPoints(ctx context.Context) ([]models.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]models.User, error)
	UserStats(ctx context.Context, userID string) (UserStats, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)

	CreateStory(ctx context.Context, story *models.Story) error
	GetStory(ctx context.Context, id string) (*models.Story, error)
	ReserveLineNumber(ctx context.Context, storyID string, lineCap int) (int, error)
	MarkStoryComplete(ctx context.Context, storyID string, lineCap int) (bool, error)
	AddStoryVotes(ctx context.Context, storyID string, amount int64) error
	ListStories(ctx context.Context, q StoryQuery) ([]models.Story, error)
	ReserveMint(ctx context.Context, storyID string) (bool, error)
	ReleaseMint(ctx context.Context, storyID string) error
	RecordMasterMint(ctx context.Context, storyID string, tokenID int64, metadataURI string) error
	CompleteMint(ctx context.Context, storyID string, tokenID int64, metadataURI string) error
	NextMasterTokenID(ctx context.Context) (int64, error)

	CreateLine(ctx context.Context, line *models.StoryLine) error
	GetLine(ctx context.Context, id string) (*models.StoryLine, error)
	CountLinesSince(ctx context.Context, authorID string, since time.Time) (int64, error)
	AddLineVotes(ctx context.Context, lineID string, amount int64) (int64, error)
	ApproveLine(ctx context.Context, lineID string, threshold int64, at time.Time) (bool, error)
	ListLines(ctx context.Context, storyID string) ([]models.StoryLine, error)
	RecentApprovedLines(ctx context.Context, authorID string, limit int) ([]models.StoryLine, error)

	CreateVote(ctx context.Context, vote *models.Vote) error
	CountVotesBy(ctx context.Context, voterID string) (int64, error)
	ContributorStats(ctx context.Context, storyID string) ([]ContributorStat, error)

	SumUnclaimed(ctx context.Context, userID string) (int64, error)
	CreateClaim(ctx context.Context, claim *models.Claim) error
	ListClaims(ctx context.Context, userID string, unclaimedOnly bool) ([]models.Claim, error)
	ListUnclaimedWithAddress(ctx context.Context) ([]models.Claim, error)
	GetClaims(ctx context.Context, userID string, ids []string) ([]models.Claim, error)
	ListClaimsSince(ctx context.Context, userID string, after ClaimCursor) ([]models.Claim, error)
	SetClaimProof(ctx context.Context, id, root string, proof []string) error
	SettleClaim(ctx context.Context, id, txHash string, at time.Time) (*models.Claim, error)

	ReplaceStoryShares(ctx context.Context, storyID string, shares []models.StoryShare) error
	ListStoryShares(ctx context.Context, storyID string) ([]models.StoryShare, error)
	CreateRoyaltyPayment(ctx context.Context, payment *models.RoyaltyPayment) error
	ListRoyaltyPaymentsFor(ctx context.Context, userID string) ([]models.RoyaltyPayment, error)

	GetDailyPrompt(ctx context.Context, day string) (*models.DailyPrompt, error)
	CreateDailyPrompt(ctx context.Context, prompt *models.DailyPrompt) error
	BumpDailyPrompt(ctx context.Context, day, fallbackPrompt string) error
	CreateChallenge(ctx context.Context, challenge *models.WeeklyChallenge) error
	GetChallenge(ctx context.Context, id string) (*models.WeeklyChallenge, error)
	ActiveChallenge(ctx context.Context, now time.Time) (*models.WeeklyChallenge, error)
	CreateChallengeSubmission(ctx context.Context, sub *models.ChallengeSubmission) error
	TopSubmissions(ctx context.Context, challengeID string, limit int) ([]models.ChallengeSubmission, error)
	CountSubmissions(ctx context.Context, challengeID string) (int64, error)
	EndedChallengesWithoutWinner(ctx context.Context, now time.Time) ([]models.WeeklyChallenge, error)
	SetChallengeWinner(ctx context.Context, id string, fid int64) (bool, error)

	EnqueueEffect(ctx context.Context, effect *models.OutboxEffect) (bool, error)
	ClaimDueEffects(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxEffect, error)
	MarkEffectDone(ctx context.Context, id string, at time.Time) error
	MarkEffectFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error
	GetEffectByKey(ctx context.Context, key string) (*models.OutboxEffect, error)

	AwardBadge(ctx context.Context, userID, badge string) (bool, error)
	ListBadges(ctx context.Context, userID string) ([]models.UserBadge, error)

	SaveCustodyAddress(ctx context.Context, fid int64, address string, at time.Time) error
	CachedCustodyAddress(ctx context.Context, fid int64) (string, error)
}

// StoryQuery filters ListStories.
type StoryQuery struct {
	Limit           int
	Offset          int
	IncludeComplete bool
}

// ContributorStat aggregates one author's contribution to a story.
type ContributorStat struct {
	UserID        string
	FID           int64
	LorePoints    int64
	ApprovedLines int64
	VoteSum       int64
}

// ClaimCursor marks the last claim a stream has delivered.
type ClaimCursor struct {
	CreatedAt time.Time
	ID        string
}

// UserStats feeds badge evaluation and the profile view.
type UserStats struct {
	Lines         int64
	ApprovedLines int64
	CurrentStreak int64
	LongestStreak int64
	ChallengeWins int64
	Submissions   int64
}

// GormStore implements Store on top of gorm (Postgres in production, SQLite in tests).
type GormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
