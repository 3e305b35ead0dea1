package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lore-machine/models"
	"lore-machine/repository"
	"lore-machine/repository/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type scriptedRunner struct {
	mu   sync.Mutex
	err  error
	runs []string
}

func (r *scriptedRunner) Run(_ context.Context, e models.OutboxEffect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, e.IdempotencyKey)
	return r.err
}

func (r *scriptedRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *recordingAlerter) Alert(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
	return nil
}

func enqueue(t *testing.T, store repository.Store, key string, maxAttempts int, at time.Time) {
	t.Helper()
	inserted, err := store.EnqueueEffect(context.Background(), &models.OutboxEffect{
		Kind:           models.EffectNotify,
		IdempotencyKey: key,
		Payload:        []byte(`{}`),
		MaxAttempts:    maxAttempts,
		NextAttemptAt:  at,
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{7, 32 * time.Minute},
		{8, time.Hour},
		{40, time.Hour},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Backoff(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestDrainMarksDone(t *testing.T) {
	store := repotest.NewStore(t)
	clock := &stepClock{now: t0}
	runner := &scriptedRunner{}
	w := NewOutboxWorker(store, runner, nil, zaptest.NewLogger(t).Sugar(), time.Second, 10, clock.Now)

	enqueue(t, store, "notify:a", 5, t0)
	enqueue(t, store, "notify:later", 5, t0.Add(time.Hour))

	done, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, []string{"notify:a"}, runner.runs)

	got, err := store.GetEffectByKey(context.Background(), "notify:a")
	require.NoError(t, err)
	assert.Equal(t, models.EffectDone, got.Status)
	require.NotNil(t, got.CompletedAt)

	done, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, done, "done effects are never drained again")
}

func TestDrainBacksOffThenGivesUp(t *testing.T) {
	store := repotest.NewStore(t)
	clock := &stepClock{now: t0}
	runner := &scriptedRunner{err: errors.New("neynar 503")}
	alerter := &recordingAlerter{}
	w := NewOutboxWorker(store, runner, alerter, zaptest.NewLogger(t).Sugar(), time.Second, 10, clock.Now)
	ctx := context.Background()

	enqueue(t, store, "notify:flaky", 2, t0)

	_, err := w.Drain(ctx)
	require.NoError(t, err)
	eff, err := store.GetEffectByKey(ctx, "notify:flaky")
	require.NoError(t, err)
	assert.Equal(t, models.EffectPending, eff.Status)
	assert.Equal(t, 1, eff.Attempts)
	assert.Equal(t, "neynar 503", eff.LastError)
	assert.True(t, eff.NextAttemptAt.Equal(t0.Add(BackoffBase)), "next attempt %s", eff.NextAttemptAt)

	// not due yet
	_, err = w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.count())

	clock.Advance(BackoffBase)
	_, err = w.Drain(ctx)
	require.NoError(t, err)
	eff, err = store.GetEffectByKey(ctx, "notify:flaky")
	require.NoError(t, err)
	assert.Equal(t, models.EffectDead, eff.Status)
	assert.Equal(t, 2, eff.Attempts)
	require.Len(t, alerter.alerts, 1)
	assert.Contains(t, alerter.alerts[0], "notify:flaky")

	clock.Advance(24 * time.Hour)
	_, err = w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, runner.count(), "dead effects stay dead")
}

func TestWorkerStartStops(t *testing.T) {
	store := repotest.NewStore(t)
	runner := &scriptedRunner{}
	w := NewOutboxWorker(store, runner, nil, zaptest.NewLogger(t).Sugar(), 5*time.Millisecond, 10,
		func() time.Time { return time.Now().UTC() })

	enqueue(t, store, "notify:bg", 5, time.Now().UTC().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)
	assert.Eventually(t, func() bool { return runner.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
