package services

import (
	"strings"
	"testing"
	"time"

	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		errCode string
	}{
		{"trims whitespace", "  the dragon woke  \n", "the dragon woke", ""},
		{"composes to NFC", "cafe\u0301", "caf\u00e9", ""},
		{"empty", "", "", "empty_content"},
		{"only spaces", "   \t ", "", "empty_content"},
		{"exactly at limit", strings.Repeat("é", MaxLineLength), strings.Repeat("é", MaxLineLength), ""},
		{"one over limit", strings.Repeat("a", MaxLineLength+1), "", "content_too_long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeContent(tc.in)
			if tc.errCode != "" {
				requireKind(t, err, KindValidation, tc.errCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubmitStartsStoryAndNumbersLines(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, 1, "alice")
	bob := env.user(t, 2, "bob")

	first := env.submit(t, alice.ID, "", "Once upon a block")
	assert.Equal(t, 1, first.LineNumber)
	require.NotEmpty(t, first.StoryID)

	second := env.submit(t, bob.ID, first.StoryID, "a validator dreamed")
	third := env.submit(t, alice.ID, first.StoryID, "of a chain without forks")
	assert.Equal(t, 2, second.LineNumber)
	assert.Equal(t, 3, third.LineNumber)

	story, err := env.store.GetStory(env.ctx, first.StoryID)
	require.NoError(t, err)
	assert.Equal(t, 3, story.LineCount)
	assert.False(t, story.IsComplete)

	prompt, err := env.store.GetDailyPrompt(env.ctx, utils.DayKey(testNow, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(3), prompt.SubmissionCount)
}

func TestSubmitUpdatesStreakAndAwardsCoCreator(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, 1, "alice")

	env.submit(t, alice.ID, "", "day one")
	env.clock.Advance(24 * time.Hour)
	env.submit(t, alice.ID, "", "day two")

	got := env.reload(t, alice.ID)
	assert.Equal(t, 2, got.CurrentStreak)
	assert.Equal(t, 2, got.LongestStreak)

	badges, err := env.badges.List(env.ctx, alice.ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(badges))
	for _, b := range badges {
		codes = append(codes, b.Code)
	}
	assert.Contains(t, codes, "co-creator")
	assert.NotContains(t, codes, "first-author")
}

func TestSubmitEnforcesDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, 1, "alice")

	for i := 0; i < env.cfg.MaxLinesPerDay; i++ {
		env.submit(t, alice.ID, "", "line")
	}
	_, err := env.submission.Submit(env.ctx, SubmitInput{UserID: alice.ID, Content: "one too many"})
	requireKind(t, err, KindRateLimited, "daily_limit")

	// the limit resets at local midnight
	env.clock.Advance(12 * time.Hour)
	env.submit(t, alice.ID, "", "a new day")
}

func TestSubmitRejectsUnknownTargets(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, 1, "alice")

	_, err := env.submission.Submit(env.ctx, SubmitInput{UserID: alice.ID, StoryID: "not-a-uuid", Content: "x"})
	requireKind(t, err, KindNotFound, "story_not_found")

	_, err = env.submission.Submit(env.ctx, SubmitInput{UserID: alice.ID, StoryID: "8f14e45f-ceea-467f-a0e5-0b4a3c6b2b11", Content: "x"})
	requireKind(t, err, KindNotFound, "story_not_found")

	_, err = env.submission.Submit(env.ctx, SubmitInput{UserID: "8f14e45f-ceea-467f-a0e5-0b4a3c6b2b11", Content: "x"})
	requireKind(t, err, KindNotFound, "user_not_found")

	_, err = env.submission.Submit(env.ctx, SubmitInput{UserID: alice.ID, Content: "   "})
	requireKind(t, err, KindValidation, "empty_content")
}

func TestSubmitCompletesStoryAtCap(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.StoryLineCap = 3 })
	alice := env.user(t, 1, "alice")
	bob := env.user(t, 2, "bob")

	first := env.submit(t, alice.ID, "", "one")
	env.submit(t, bob.ID, first.StoryID, "two")
	last := env.submit(t, alice.ID, first.StoryID, "three")
	assert.Equal(t, 3, last.LineNumber)

	story, err := env.store.GetStory(env.ctx, first.StoryID)
	require.NoError(t, err)
	assert.True(t, story.IsComplete)

	mint := env.effect(t, "nft_mint:story:"+story.ID)
	assert.Equal(t, models.EffectNFTMint, mint.Kind)
	assert.Equal(t, models.EffectPending, mint.Status)
	announce := env.effect(t, "story_announce:story:"+story.ID)
	assert.Equal(t, models.EffectStoryAnnounce, announce.Kind)

	_, err = env.submission.Submit(env.ctx, SubmitInput{UserID: bob.ID, StoryID: story.ID, Content: "four"})
	requireKind(t, err, KindConflict, "story_complete")
}
