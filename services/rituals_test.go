package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lore-machine/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeState(t *testing.T) {
	start := testNow
	end := start.Add(ChallengeLength)

	cases := []struct {
		name string
		now  time.Time
		want ChallengeStatus
	}{
		{"before start", start.Add(-time.Second), ChallengeUpcoming},
		{"at start", start, ChallengeActive},
		{"midway", start.Add(72 * time.Hour), ChallengeActive},
		{"at end", end, ChallengeActive},
		{"after end", end.Add(time.Second), ChallengeCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ChallengeState(tc.now, start, end))
		})
	}
}

func TestFallbackPromptIsStablePerDay(t *testing.T) {
	env := newTestEnv(t)
	morning := time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, env.rituals.FallbackPrompt(morning), env.rituals.FallbackPrompt(evening))
	assert.NotEqual(t, env.rituals.FallbackPrompt(morning), env.rituals.FallbackPrompt(morning.Add(24*time.Hour)))
}

func TestTodayPromptIsCreatedOnce(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.rituals.TodayPrompt(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, utils.DayKey(testNow, time.UTC), first.Day)
	assert.Equal(t, env.rituals.FallbackPrompt(testNow), first.Prompt)

	second, err := env.rituals.TodayPrompt(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGenerateDailyPrompt(t *testing.T) {
	t.Run("uses the writer", func(t *testing.T) {
		env := newTestEnv(t)
		env.rituals.writer = &fakeWriter{text: "  Write the line the oracle refused to sign.  "}

		p, err := env.rituals.GenerateDailyPrompt(env.ctx)
		require.NoError(t, err)
		assert.Equal(t, "Write the line the oracle refused to sign.", p.Prompt)

		// an existing prompt is never replaced
		env.rituals.writer = &fakeWriter{text: "something else"}
		again, err := env.rituals.GenerateDailyPrompt(env.ctx)
		require.NoError(t, err)
		assert.Equal(t, p.ID, again.ID)
		assert.Equal(t, p.Prompt, again.Prompt)
	})

	t.Run("falls back to the bank", func(t *testing.T) {
		env := newTestEnv(t)
		env.rituals.writer = &fakeWriter{err: errors.New("quota exceeded")}

		p, err := env.rituals.GenerateDailyPrompt(env.ctx)
		require.NoError(t, err)
		assert.Equal(t, env.rituals.FallbackPrompt(testNow), p.Prompt)
	})
}

func TestCreateChallengeValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.rituals.CreateChallenge(env.ctx, " ", "prompt", nil, nil)
	requireKind(t, err, KindValidation, "missing_theme")

	start := testNow
	end := testNow.Add(-time.Hour)
	_, err = env.rituals.CreateChallenge(env.ctx, "Theme", "Prompt", &start, &end)
	requireKind(t, err, KindValidation, "invalid_window")

	ch, err := env.rituals.CreateChallenge(env.ctx, "Forks", "Write about a fork", nil, nil)
	require.NoError(t, err)
	assert.True(t, ch.StartDate.Equal(testNow))
	assert.True(t, ch.EndDate.Equal(testNow.Add(ChallengeLength)))
}

func TestOpenWeeklyChallengeKeepsRunningOne(t *testing.T) {
	env := newTestEnv(t)

	opened, err := env.rituals.OpenWeeklyChallenge(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, env.rituals.WeeklyTheme(testNow).Theme, opened.Theme)

	env.clock.Advance(48 * time.Hour)
	again, err := env.rituals.OpenWeeklyChallenge(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, again.ID)
}

func TestSubmitToChallenge(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, 1, "alice")
	bob := env.user(t, 2, "bob")
	line := env.submit(t, alice.ID, "", "my entry")

	_, err := env.rituals.SubmitToChallenge(env.ctx, alice.ID, line.ID)
	requireKind(t, err, KindValidation, "no_active_challenge")

	_, err = env.rituals.CreateChallenge(env.ctx, "Theme", "Prompt", nil, nil)
	require.NoError(t, err)

	_, err = env.rituals.SubmitToChallenge(env.ctx, bob.ID, line.ID)
	requireKind(t, err, KindForbidden, "not_line_author")

	_, err = env.rituals.SubmitToChallenge(env.ctx, alice.ID, "8f14e45f-ceea-467f-a0e5-0b4a3c6b2b11")
	requireKind(t, err, KindNotFound, "line_not_found")

	sub, err := env.rituals.SubmitToChallenge(env.ctx, alice.ID, line.ID)
	require.NoError(t, err)
	assert.Equal(t, line.ID, sub.LineID)

	other := env.submit(t, alice.ID, "", "second entry")
	_, err = env.rituals.SubmitToChallenge(env.ctx, alice.ID, other.ID)
	requireKind(t, err, KindConflict, "already_submitted")

	view, err := env.rituals.CurrentChallenge(env.ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, ChallengeActive, view.Status)
	assert.Equal(t, 7, view.DaysRemaining)
	assert.Equal(t, int64(1), view.SubmissionCount)
	require.Len(t, view.TopSubmissions, 1)
}

func TestCurrentChallengeNoneRunning(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.rituals.CurrentChallenge(env.ctx)
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestSelectWinnerPicksMostVotedLine(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, 1, "alice")
	bob := env.user(t, 2, "bob")
	carol := env.user(t, 3, "carol")

	ch, err := env.rituals.CreateChallenge(env.ctx, "Theme", "Prompt", nil, nil)
	require.NoError(t, err)

	aliceLine := env.submit(t, alice.ID, "", "alice's entry")
	bobLine := env.submit(t, bob.ID, "", "bob's entry")
	_, err = env.rituals.SubmitToChallenge(env.ctx, alice.ID, aliceLine.ID)
	require.NoError(t, err)
	_, err = env.rituals.SubmitToChallenge(env.ctx, bob.ID, bobLine.ID)
	require.NoError(t, err)
	env.vote(t, carol.ID, aliceLine.ID, 10)
	env.vote(t, carol.ID, bobLine.ID, 70)

	_, err = env.rituals.SelectWinner(env.ctx, ch.ID)
	requireKind(t, err, KindConflict, "challenge_not_ended")
	pending, err := env.store.GetChallenge(env.ctx, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, pending.WinnerFID, "no winner while voting is open")

	env.clock.Advance(8 * 24 * time.Hour)
	winner, err := env.rituals.SelectWinner(env.ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, int64(2), winner.WinnerFID)
	assert.NotEmpty(t, winner.SubmissionID)

	eff := env.effect(t, "notify:challenge_winner:"+ch.ID)
	var note NotifyPayload
	require.NoError(t, json.Unmarshal(eff.Payload, &note))
	assert.Equal(t, []int64{2}, note.FIDs)

	badges, err := env.badges.List(env.ctx, bob.ID)
	require.NoError(t, err)
	var codes []string
	for _, b := range badges {
		codes = append(codes, b.Code)
	}
	assert.Contains(t, codes, "weekly-winner")

	// more votes afterwards do not move a recorded winner
	env.vote(t, bob.ID, aliceLine.ID, 500)
	again, err := env.rituals.SelectWinner(env.ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.WinnerFID)
}

func TestSelectWinnerWithoutSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ch, err := env.rituals.CreateChallenge(env.ctx, "Theme", "Prompt", nil, nil)
	require.NoError(t, err)
	env.clock.Advance(8 * 24 * time.Hour)

	winner, err := env.rituals.SelectWinner(env.ctx, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, winner)

	_, err = env.rituals.SelectWinner(env.ctx, "8f14e45f-ceea-467f-a0e5-0b4a3c6b2b11")
	requireKind(t, err, KindNotFound, "challenge_not_found")
}

func TestProcessCompletedChallenges(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, 1, "alice")

	start := testNow.Add(-10 * 24 * time.Hour)
	end := testNow.Add(-3 * 24 * time.Hour)
	ended, err := env.rituals.CreateChallenge(env.ctx, "Past", "Prompt", &start, &end)
	require.NoError(t, err)

	// backdate the entry into the ended window
	env.clock.Advance(-5 * 24 * time.Hour)
	line := env.submit(t, alice.ID, "", "late entry")
	_, err = env.rituals.SubmitToChallenge(env.ctx, alice.ID, line.ID)
	require.NoError(t, err)
	env.clock.Advance(5 * 24 * time.Hour)

	running, err := env.rituals.CreateChallenge(env.ctx, "Now", "Prompt", nil, nil)
	require.NoError(t, err)

	winners, err := env.rituals.ProcessCompletedChallenges(env.ctx)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, ended.ID, winners[0].ChallengeID)
	assert.Equal(t, int64(1), winners[0].WinnerFID)

	still, err := env.store.GetChallenge(env.ctx, running.ID)
	require.NoError(t, err)
	assert.Nil(t, still.WinnerFID)

	again, err := env.rituals.ProcessCompletedChallenges(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}
