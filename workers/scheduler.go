// workers/scheduler.go
package workers

import (
	"context"
	"time"

	"lore-machine/models"
	"lore-machine/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type RitualJobs interface {
	GenerateDailyPrompt(ctx context.Context) (*models.DailyPrompt, error)
	OpenWeeklyChallenge(ctx context.Context) (*models.WeeklyChallenge, error)
	ProcessCompletedChallenges(ctx context.Context) ([]services.ChallengeWinner, error)
}

type ClaimJobs interface {
	SyncAll(ctx context.Context) (services.SyncSummary, error)
	BuildMerkleTree(ctx context.Context) (services.MerkleSnapshot, error)
}

// Intervals of the periodic jobs.
var (
	WinnerCheckInterval = time.Hour
	ClaimSyncInterval   = time.Hour
)

// Scheduler runs the ritual and claim jobs on gocron.
type Scheduler struct {
	sched   gocron.Scheduler
	rituals RitualJobs
	claims  ClaimJobs
	log     *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(loc *time.Location, rituals RitualJobs, claims ClaimJobs, log *zap.SugaredLogger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{sched: sched, rituals: rituals, claims: claims, log: log, ctx: ctx, cancel: cancel}

	jobs := []struct {
		name string
		def  gocron.JobDefinition
		fn   func()
	}{
		{"daily-prompt", gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 5))), s.dailyPrompt},
		{"weekly-challenge", gocron.WeeklyJob(1, gocron.NewWeekdays(time.Monday), gocron.NewAtTimes(gocron.NewAtTime(0, 1, 0))), s.weeklyChallenge},
		{"challenge-winners", gocron.DurationJob(WinnerCheckInterval), s.challengeWinners},
		{"claim-sync", gocron.DurationJob(ClaimSyncInterval), s.claimSync},
	}
	for _, j := range jobs {
		if _, err := sched.NewJob(j.def, gocron.NewTask(j.fn),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Infof("⏰ [SCHEDULER] started with %d jobs", len(s.sched.Jobs()))
}

// Shutdown cancels running jobs and waits for them.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

func (s *Scheduler) dailyPrompt() {
	p, err := s.rituals.GenerateDailyPrompt(s.ctx)
	if err != nil {
		s.log.Errorf("❌ [SCHEDULER] daily prompt: %v", err)
		return
	}
	s.log.Infof("🌅 [SCHEDULER] daily prompt ready for %s", p.Day)
}

func (s *Scheduler) weeklyChallenge() {
	c, err := s.rituals.OpenWeeklyChallenge(s.ctx)
	if err != nil {
		s.log.Errorf("❌ [SCHEDULER] weekly challenge: %v", err)
		return
	}
	s.log.Infof("🏁 [SCHEDULER] weekly challenge %s: %s", c.ID, c.Theme)
}

func (s *Scheduler) challengeWinners() {
	winners, err := s.rituals.ProcessCompletedChallenges(s.ctx)
	if err != nil {
		s.log.Errorf("❌ [SCHEDULER] winner selection: %v", err)
	}
	for _, w := range winners {
		s.log.Infof("🏆 [SCHEDULER] challenge %s → fid %d", w.ChallengeID, w.WinnerFID)
	}
}

func (s *Scheduler) claimSync() {
	summary, err := s.claims.SyncAll(s.ctx)
	if err != nil {
		s.log.Errorf("❌ [SCHEDULER] claim sync: %v", err)
		return
	}
	snap, err := s.claims.BuildMerkleTree(s.ctx)
	if err != nil {
		s.log.Errorf("❌ [SCHEDULER] merkle refresh: %v", err)
		return
	}
	s.log.Infof("🪙 [SCHEDULER] %d users synced, %d new claims, merkle root %q over %d leaves",
		summary.Synced, summary.TotalClaims, snap.Root, snap.Leaves)
}
