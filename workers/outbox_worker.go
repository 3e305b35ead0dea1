// workers/outbox_worker.go
package workers

import (
	"context"
	"fmt"
	"time"

	"lore-machine/models"
	"lore-machine/repository"

	"go.uber.org/zap"
)

const (
	BackoffBase = 30 * time.Second
	BackoffCap  = time.Hour
	// EffectLease is how long a drained effect stays invisible to other drainers.
	EffectLease = 5 * time.Minute
)

// EffectRunner executes one effect. A nil error marks it done.
type EffectRunner interface {
	Run(ctx context.Context, effect models.OutboxEffect) error
}

// Alerter reports dead effects to operators.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Backoff is the delay before retry number attempt (1-based): 30s doubling, capped at an hour.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= BackoffCap {
			return BackoffCap
		}
	}
	return d
}

type OutboxWorker struct {
	store    repository.Store
	runner   EffectRunner
	alerter  Alerter
	log      *zap.SugaredLogger
	interval time.Duration
	batch    int
	now      func() time.Time
}

// NewOutboxWorker builds a worker. alerter may be nil.
func NewOutboxWorker(store repository.Store, runner EffectRunner, alerter Alerter, log *zap.SugaredLogger, interval time.Duration, batch int, now func() time.Time) *OutboxWorker {
	return &OutboxWorker{
		store:    store,
		runner:   runner,
		alerter:  alerter,
		log:      log,
		interval: interval,
		batch:    batch,
		now:      now,
	}
}

// Start drains in the background until ctx is cancelled.
func (w *OutboxWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	w.log.Infof("🔁 [OUTBOX] worker started, every %s", w.interval)
	go func() {
		defer close(done)
		w.run(ctx)
	}()
	return done
}

func (w *OutboxWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 [OUTBOX] worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.log.Errorf("❌ [OUTBOX] drain failed: %v", err)
			}
		}
	}
}

// Drain runs one batch of due effects and reports how many completed.
func (w *OutboxWorker) Drain(ctx context.Context) (int, error) {
	due, err := w.store.ClaimDueEffects(ctx, w.now(), EffectLease, w.batch)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, effect := range due {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if w.runOne(ctx, effect) {
			done++
		}
	}
	if len(due) > 0 {
		w.log.Debugf("📤 [OUTBOX] drained %d/%d effects", done, len(due))
	}
	return done, nil
}

func (w *OutboxWorker) runOne(ctx context.Context, effect models.OutboxEffect) bool {
	runErr := w.runner.Run(ctx, effect)
	now := w.now()
	if runErr == nil {
		if err := w.store.MarkEffectDone(ctx, effect.ID, now); err != nil {
			w.log.Errorf("❌ [OUTBOX] %s ran but could not be marked done: %v", effect.IdempotencyKey, err)
			return false
		}
		return true
	}

	attempts := effect.Attempts + 1
	dead := attempts >= effect.MaxAttempts
	next := now.Add(Backoff(attempts))
	if err := w.store.MarkEffectFailed(ctx, effect.ID, attempts, next, runErr.Error(), dead); err != nil {
		w.log.Errorf("❌ [OUTBOX] could not record failure of %s: %v", effect.IdempotencyKey, err)
		return false
	}

	if !dead {
		w.log.Warnw("⚠️ [OUTBOX] effect failed, will retry",
			"key", effect.IdempotencyKey, "attempt", attempts, "next", next, "error", runErr)
		return false
	}

	w.log.Errorw("💀 [OUTBOX] effect dead after max attempts",
		"key", effect.IdempotencyKey, "kind", effect.Kind, "attempts", attempts, "error", runErr)
	if w.alerter != nil {
		msg := fmt.Sprintf("outbox effect %s (%s) is dead after %d attempts: %v", effect.IdempotencyKey, effect.Kind, attempts, runErr)
		if err := w.alerter.Alert(ctx, msg); err != nil {
			w.log.Warnf("⚠️ [OUTBOX] alert failed: %v", err)
		}
	}
	return false
}
