package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lore-machine/clients"
	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"
	"lore-machine/repository/repotest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testNow is a Monday, so weekly and daily boundaries are easy to reason about.
var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const testToken = "0x00000000000000000000000000000000000010e0"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSocial struct {
	mu        sync.Mutex
	addresses map[int64]string
	lookupErr error
	castErr   error
	casts     []string
	notified  []NotifyPayload
}

func (f *fakeSocial) CustodyAddress(_ context.Context, fid int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.addresses[fid], nil
}

func (f *fakeSocial) PublishCast(_ context.Context, text string, _ []string) (*clients.Cast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.castErr != nil {
		return nil, f.castErr
	}
	f.casts = append(f.casts, text)
	return &clients.Cast{Hash: "0xcast", Text: text}, nil
}

func (f *fakeSocial) SendNotification(_ context.Context, fids []int64, title, body, targetURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, NotifyPayload{FIDs: fids, Title: title, Body: body, TargetURL: targetURL})
	return nil
}

func (f *fakeSocial) setAddress(fid int64, addr string) {
	f.mu.Lock()
	f.addresses[fid] = addr
	f.mu.Unlock()
}

type fakePaymaster struct{ available bool }

func (p *fakePaymaster) IsAvailable(context.Context, int64) bool { return p.available }

type fakeMinter struct {
	mu        sync.Mutex
	lastToken int64
	masterErr error
	shareErr  error
	stories   []clients.MintStoryRequest
	shares    []clients.ShareMintRequest
}

func (m *fakeMinter) MintStory(_ context.Context, req clients.MintStoryRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.masterErr != nil {
		return 0, m.masterErr
	}
	m.lastToken++
	m.stories = append(m.stories, req)
	return m.lastToken, nil
}

func (m *fakeMinter) BatchMintShares(_ context.Context, req clients.ShareMintRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shareErr != nil {
		return "", m.shareErr
	}
	m.shares = append(m.shares, req)
	return "0xshares", nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (o *fakeObjects) PutObject(_ context.Context, key, _ string, body []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.objects == nil {
		o.objects = make(map[string][]byte)
	}
	o.objects[key] = body
	return "https://cdn.lore.test/" + key, nil
}

type fakeWriter struct {
	text string
	err  error
}

func (w *fakeWriter) WritePrompt(context.Context, string) (string, error) {
	return w.text, w.err
}

var errProviderDown = errors.New("provider down")

type testEnv struct {
	ctx    context.Context
	store  *repository.GormStore
	cfg    *config.Config
	clock  *testClock
	social *fakeSocial
	pay    *fakePaymaster

	addresses  *AddressResolver
	badges     *BadgeService
	rituals    *RitualService
	submission *SubmissionService
	voting     *VotingService
	claims     *ClaimService
	royalty    *RoyaltyService
	mint       *MintService
	stories    *StoryService
	profile    *ProfileService
	notify     *NotificationService
	runner     *EffectRunner
}

func testConfig() *config.Config {
	return &config.Config{
		PublicURL:                "https://lore.test",
		Location:                 time.UTC,
		MaxLinesPerDay:           5,
		StoryLineCap:             100,
		VoteThreshold:            100,
		RoyaltyDefaultPercentage: 10,
		ApprovalRewardMode:       config.RewardTriggerAmount,
		Token:                    config.TokenConfig{Address: testToken, ChainID: 84532, Name: "LORE", Symbol: "LORE", IsActive: true},
		OutboxBatchSize:          20,
	}
}

// newTestEnv wires every service against a fresh SQLite store. tweak runs
// before wiring.
func newTestEnv(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, fn := range tweak {
		fn(cfg)
	}
	bank, err := config.LoadRitualBank("")
	require.NoError(t, err)

	env := &testEnv{
		ctx:    context.Background(),
		store:  repotest.NewStore(t),
		cfg:    cfg,
		clock:  &testClock{now: testNow},
		social: &fakeSocial{addresses: map[int64]string{}},
		pay:    &fakePaymaster{available: true},
	}
	log := zaptest.NewLogger(t).Sugar()
	now := env.clock.Now

	env.addresses = NewAddressResolver(env.social, env.store, log, now)
	env.badges = NewBadgeService(env.store, log)
	env.rituals = NewRitualService(env.store, cfg, bank, nil, env.badges, log, now)
	env.submission = NewSubmissionService(env.store, cfg, env.rituals, env.badges, log, now)
	env.voting = NewVotingService(env.store, cfg, env.badges, log, now)
	env.claims = NewClaimService(env.store, env.addresses, env.pay, cfg, log, now)
	env.royalty = NewRoyaltyService(env.store, env.addresses, cfg, log)
	env.mint = NewMintService(env.store, env.addresses, nil, nil, cfg, log)
	env.stories = NewStoryService(env.store, cfg, log)
	env.profile = NewProfileService(env.store, env.badges, log)
	env.notify = NewNotificationService(env.social, log)
	env.runner = NewEffectRunner(env.claims, env.mint, env.social, cfg, log)
	return env
}

func (e *testEnv) user(t *testing.T, fid int64, username string) *models.User {
	t.Helper()
	u, err := e.store.EnsureUser(e.ctx, fid, username)
	require.NoError(t, err)
	return u
}

func (e *testEnv) submit(t *testing.T, userID, storyID, content string) *models.StoryLine {
	t.Helper()
	line, err := e.submission.Submit(e.ctx, SubmitInput{UserID: userID, StoryID: storyID, Content: content})
	require.NoError(t, err)
	return line
}

func (e *testEnv) vote(t *testing.T, voterID, lineID string, amount int64) *VoteResult {
	t.Helper()
	res, err := e.voting.Vote(e.ctx, voterID, lineID, amount)
	require.NoError(t, err)
	return res
}

func (e *testEnv) reload(t *testing.T, userID string) *models.User {
	t.Helper()
	u, err := e.store.GetUser(e.ctx, userID)
	require.NoError(t, err)
	return u
}

func (e *testEnv) effect(t *testing.T, key string) *models.OutboxEffect {
	t.Helper()
	eff, err := e.store.GetEffectByKey(e.ctx, key)
	require.NoError(t, err, "effect %s", key)
	return eff
}

func requireKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
	if code != "" {
		require.Equal(t, code, CodeOf(err))
	}
}
