package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lore-machine/models"
	"lore-machine/repository"
	"lore-machine/repository/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, store repository.Store, fid int64) *models.User {
	t.Helper()
	u, err := store.EnsureUser(context.Background(), fid, "")
	require.NoError(t, err)
	return u
}

func seedLine(t *testing.T, store repository.Store, storyID, authorID string, n int) *models.StoryLine {
	t.Helper()
	line := &models.StoryLine{StoryID: storyID, AuthorID: authorID, Content: "line", LineNumber: n}
	require.NoError(t, store.CreateLine(context.Background(), line))
	return line
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()

	first, err := store.EnsureUser(ctx, 42, "alice")
	require.NoError(t, err)
	second, err := store.EnsureUser(ctx, 42, "alice2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	got, err := store.GetUserByFID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
}

func TestFIDColumnsRoundTrip(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()

	for _, model := range []any{&models.User{}, &models.CustodyAddress{}} {
		cols, err := store.DB().Migrator().ColumnTypes(model)
		require.NoError(t, err)
		names := make([]string, 0, len(cols))
		for _, c := range cols {
			names = append(names, c.Name())
		}
		assert.Contains(t, names, "fid")
		assert.NotContains(t, names, "f_id")
	}

	created, err := store.EnsureUser(ctx, 7, "seven")
	require.NoError(t, err)
	got, err := store.GetUserByFID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(7), got.FID)

	_, err = store.GetUserByFID(ctx, 8)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.AddLorePoints(ctx, got.ID, 5))
	withPoints, err := store.ListUsersWithPoints(ctx)
	require.NoError(t, err)
	require.Len(t, withPoints, 1)
	assert.Equal(t, int64(7), withPoints[0].FID)
}

func TestReserveLineNumberIsContiguousAndCapped(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()

	story := &models.Story{}
	require.NoError(t, store.CreateStory(ctx, story))

	for want := 1; want <= 3; want++ {
		n, err := store.ReserveLineNumber(ctx, story.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	_, err := store.ReserveLineNumber(ctx, story.ID, 3)
	assert.ErrorIs(t, err, repository.ErrStoryFull)

	_, err = store.ReserveLineNumber(ctx, "00000000-0000-0000-0000-000000000000", 3)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	done, err := store.MarkStoryComplete(ctx, story.ID, 3)
	require.NoError(t, err)
	assert.True(t, done)
	done, err = store.MarkStoryComplete(ctx, story.ID, 3)
	require.NoError(t, err)
	assert.False(t, done, "completion is one-shot")
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	story := &models.Story{}
	require.NoError(t, store.CreateStory(ctx, story))

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.ReserveLineNumber(ctx, story.ID, 10); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetStory(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LineCount)
}

func TestCreateVoteRejectsDuplicates(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	author := seedUser(t, store, 1)
	voter := seedUser(t, store, 2)
	story := &models.Story{}
	require.NoError(t, store.CreateStory(ctx, story))
	line := seedLine(t, store, story.ID, author.ID, 1)

	require.NoError(t, store.CreateVote(ctx, &models.Vote{VoterID: voter.ID, LineID: line.ID, Amount: 5}))
	err := store.CreateVote(ctx, &models.Vote{VoterID: voter.ID, LineID: line.ID, Amount: 7})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestApproveLineIsOneShot(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	author := seedUser(t, store, 1)
	story := &models.Story{}
	require.NoError(t, store.CreateStory(ctx, story))
	line := seedLine(t, store, story.ID, author.ID, 1)
	now := time.Now().UTC()

	count, err := store.AddLineVotes(ctx, line.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), count)

	ok, err := store.ApproveLine(ctx, line.ID, 100, now)
	require.NoError(t, err)
	assert.False(t, ok, "below threshold")

	count, err = store.AddLineVotes(ctx, line.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(100), count)

	ok, err = store.ApproveLine(ctx, line.ID, 100, now)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.AddLineVotes(ctx, line.ID, 10)
	require.NoError(t, err)
	ok, err = store.ApproveLine(ctx, line.ID, 100, now)
	require.NoError(t, err)
	assert.False(t, ok, "second crossing must not approve again")
}

func TestContributorStats(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, 1)
	bob := seedUser(t, store, 2)
	carol := seedUser(t, store, 3)
	require.NoError(t, store.AddLorePoints(ctx, alice.ID, 30))

	story := &models.Story{}
	require.NoError(t, store.CreateStory(ctx, story))
	a1 := seedLine(t, store, story.ID, alice.ID, 1)
	a2 := seedLine(t, store, story.ID, alice.ID, 2)
	b1 := seedLine(t, store, story.ID, bob.ID, 3)
	c1 := seedLine(t, store, story.ID, carol.ID, 4)

	now := time.Now().UTC()
	for _, l := range []*models.StoryLine{a1, b1} {
		_, err := store.AddLineVotes(ctx, l.ID, 100)
		require.NoError(t, err)
		_, err = store.ApproveLine(ctx, l.ID, 100, now)
		require.NoError(t, err)
	}
	require.NoError(t, store.CreateVote(ctx, &models.Vote{VoterID: bob.ID, LineID: a1.ID, Amount: 4}))
	require.NoError(t, store.CreateVote(ctx, &models.Vote{VoterID: carol.ID, LineID: a2.ID, Amount: 6}))
	require.NoError(t, store.CreateVote(ctx, &models.Vote{VoterID: alice.ID, LineID: c1.ID, Amount: 9}))

	stats, err := store.ContributorStats(ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, stats, 2, "carol has no approved line")

	byUser := map[string]repository.ContributorStat{}
	for _, s := range stats {
		byUser[s.UserID] = s
	}
	assert.Equal(t, int64(1), byUser[alice.ID].ApprovedLines)
	assert.Equal(t, int64(10), byUser[alice.ID].VoteSum, "votes on every line of the author count")
	assert.Equal(t, int64(30), byUser[alice.ID].LorePoints)
	assert.Equal(t, int64(0), byUser[bob.ID].VoteSum)
}

func TestSettleClaimOnlyOnce(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	u := seedUser(t, store, 1)

	claim := &models.Claim{UserID: u.ID, Amount: 25, Address: "0xabc"}
	require.NoError(t, store.CreateClaim(ctx, claim))

	sum, err := store.SumUnclaimed(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), sum)

	settled, err := store.SettleClaim(ctx, claim.ID, "0xtx", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, settled.IsClaimed)
	assert.Equal(t, "0xtx", settled.TxHash)

	_, err = store.SettleClaim(ctx, claim.ID, "0xother", time.Now().UTC())
	assert.ErrorIs(t, err, repository.ErrAlreadyApplied)

	_, err = store.SettleClaim(ctx, "00000000-0000-0000-0000-000000000000", "0x", time.Now().UTC())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sum, err = store.SumUnclaimed(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestListClaimsSinceBreaksTimestampTies(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	u := seedUser(t, store, 1)
	other := seedUser(t, store, 2)

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ids := []string{
		"00000000-0000-4000-8000-000000000001",
		"00000000-0000-4000-8000-000000000002",
		"00000000-0000-4000-8000-000000000003",
	}
	for _, id := range ids {
		c := &models.Claim{ID: id, UserID: u.ID, Amount: 1, Timestamps: models.Timestamps{CreatedAt: at, UpdatedAt: at}}
		require.NoError(t, store.CreateClaim(ctx, c))
	}
	later := &models.Claim{UserID: u.ID, Amount: 2, Timestamps: models.Timestamps{CreatedAt: at.Add(time.Second), UpdatedAt: at}}
	require.NoError(t, store.CreateClaim(ctx, later))
	require.NoError(t, store.CreateClaim(ctx, &models.Claim{UserID: other.ID, Amount: 9}))

	page, err := store.ListClaimsSince(ctx, u.ID, repository.ClaimCursor{CreatedAt: at, ID: ids[0]})
	require.NoError(t, err)
	require.Len(t, page, 3, "claims sharing the cursor timestamp are not skipped")
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)
	assert.Equal(t, later.ID, page[2].ID)

	page, err = store.ListClaimsSince(ctx, u.ID, repository.ClaimCursor{CreatedAt: later.CreatedAt, ID: later.ID})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestClaimProofRoundTrip(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	u := seedUser(t, store, 1)
	claim := &models.Claim{UserID: u.ID, Amount: 5, Address: "0xabc"}
	require.NoError(t, store.CreateClaim(ctx, claim))

	require.NoError(t, store.SetClaimProof(ctx, claim.ID, "0xroot", []string{"0x01", "0x02"}))

	claims, err := store.ListClaims(ctx, u.ID, true)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "0xroot", claims[0].MerkleRoot)
	assert.Equal(t, []string{"0x01", "0x02"}, []string(claims[0].Proof))
}

func TestEnqueueEffectIsIdempotentAndLeased(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	effect := func() *models.OutboxEffect {
		return &models.OutboxEffect{
			Kind:           models.EffectClaimSync,
			IdempotencyKey: "claim_sync:line:1",
			Payload:        []byte(`{"userId":"u"}`),
			MaxAttempts:    3,
			NextAttemptAt:  now,
		}
	}
	inserted, err := store.EnqueueEffect(ctx, effect())
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = store.EnqueueEffect(ctx, effect())
	require.NoError(t, err)
	assert.False(t, inserted)

	due, err := store.ClaimDueEffects(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	again, err := store.ClaimDueEffects(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "leased effects are not handed out twice")

	require.NoError(t, store.MarkEffectDone(ctx, due[0].ID, now))
	got, err := store.GetEffectByKey(ctx, "claim_sync:line:1")
	require.NoError(t, err)
	assert.Equal(t, models.EffectDone, got.Status)
}

func TestBumpDailyPromptUpserts(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.BumpDailyPrompt(ctx, "2026-10-19", "fallback"))
	require.NoError(t, store.BumpDailyPrompt(ctx, "2026-10-19", "ignored"))

	p, err := store.GetDailyPrompt(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "fallback", p.Prompt)
	assert.Equal(t, int64(2), p.SubmissionCount)

	err = store.CreateDailyPrompt(ctx, &models.DailyPrompt{Day: "2026-10-19", Prompt: "dup"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestTopSubmissionsOrdersByLineVotes(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	challenge := &models.WeeklyChallenge{Theme: "t", Prompt: "p", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	require.NoError(t, store.CreateChallenge(ctx, challenge))
	story := &models.Story{}
	require.NoError(t, store.CreateStory(ctx, story))

	var users []*models.User
	for i, votes := range []int64{5, 50, 20} {
		u := seedUser(t, store, int64(i+1))
		users = append(users, u)
		line := seedLine(t, store, story.ID, u.ID, i+1)
		_, err := store.AddLineVotes(ctx, line.ID, votes)
		require.NoError(t, err)
		require.NoError(t, store.CreateChallengeSubmission(ctx, &models.ChallengeSubmission{
			ChallengeID: challenge.ID, UserID: u.ID, LineID: line.ID,
		}))
	}

	top, err := store.TopSubmissions(ctx, challenge.ID, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, users[1].ID, top[0].UserID)
	assert.Equal(t, int64(50), top[0].Line.VoteCount)
	assert.Equal(t, users[2].ID, top[1].UserID)
	require.NotNil(t, top[0].User)
	assert.Equal(t, int64(2), top[0].User.FID)

	active, err := store.ActiveChallenge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, challenge.ID, active.ID)

	set, err := store.SetChallengeWinner(ctx, challenge.ID, 2)
	require.NoError(t, err)
	assert.True(t, set)
	set, err = store.SetChallengeWinner(ctx, challenge.ID, 3)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestCustodyAddressCache(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()

	addr, err := store.CachedCustodyAddress(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, addr)

	require.NoError(t, store.SaveCustodyAddress(ctx, 7, "0x1", time.Now().UTC()))
	require.NoError(t, store.SaveCustodyAddress(ctx, 7, "0x2", time.Now().UTC()))

	addr, err = store.CachedCustodyAddress(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "0x2", addr)
}
