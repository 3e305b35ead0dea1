package cmd

import (
	"context"
	"fmt"
	"time"

	"lore-machine/clients"
	"lore-machine/config"
	"lore-machine/handlers"
	"lore-machine/repository"
	"lore-machine/services"
	"lore-machine/utils"
	"lore-machine/workers"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// runtime holds every wired component of the process.
type runtime struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	db    *gorm.DB
	store *repository.GormStore

	alerter workers.Alerter

	badges        *services.BadgeService
	rituals       *services.RitualService
	claims        *services.ClaimService
	mint          *services.MintService
	submission    *services.SubmissionService
	voting        *services.VotingService
	stories       *services.StoryService
	royalties     *services.RoyaltyService
	profile       *services.ProfileService
	notifications *services.NotificationService
	effects       *services.EffectRunner
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// bootstrap loads config, opens the database and wires the services.
func bootstrap(ctx context.Context) (*runtime, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = log.Sync()
	}

	rt, err := wire(ctx, cfg, log, db)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return rt, cleanup, nil
}

func wire(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB) (*runtime, error) {
	bank, err := config.LoadRitualBank(cfg.RitualsFile)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log, db: db, store: repository.New(db)}
	now := services.SystemClock

	neynar := clients.NewNeynarClient(cfg.Neynar)
	addresses := services.NewAddressResolver(neynar, rt.store, log, now)

	var minter services.NFTMinter
	if relay := clients.NewMintRelay(cfg.MintRelay); relay != nil {
		minter = relay
	} else {
		log.Warn("⚠️ MINT_RELAY_URL not set, master token ids come from the local sequence")
	}

	var objects services.ObjectStore
	if cfg.R2.Enabled() {
		r2, err := clients.NewR2Store(ctx, cfg.R2)
		if err != nil {
			return nil, err
		}
		objects = r2
	}

	var writer services.PromptWriter
	if cfg.Gemini.APIKey != "" {
		gemini, err := clients.NewGeminiPromptWriter(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		writer = gemini
	}

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		tg, err := clients.NewTelegramAlerter(cfg.Telegram)
		if err != nil {
			log.Warnf("⚠️ telegram alerts disabled: %v", err)
		} else {
			rt.alerter = tg
		}
	}

	rt.badges = services.NewBadgeService(rt.store, log)
	rt.rituals = services.NewRitualService(rt.store, cfg, bank, writer, rt.badges, log, now)
	rt.claims = services.NewClaimService(rt.store, addresses, clients.NewPaymasterClient(cfg.Paymaster.URL), cfg, log, now)
	rt.mint = services.NewMintService(rt.store, addresses, minter, objects, cfg, log)
	rt.submission = services.NewSubmissionService(rt.store, cfg, rt.rituals, rt.badges, log, now)
	rt.voting = services.NewVotingService(rt.store, cfg, rt.badges, log, now)
	rt.stories = services.NewStoryService(rt.store, cfg, log)
	rt.royalties = services.NewRoyaltyService(rt.store, addresses, cfg, log)
	rt.profile = services.NewProfileService(rt.store, rt.badges, log)
	rt.notifications = services.NewNotificationService(neynar, log)
	rt.effects = services.NewEffectRunner(rt.claims, rt.mint, neynar, cfg, log)
	return rt, nil
}

func (rt *runtime) handlerServices() handlers.Services {
	return handlers.Services{
		Users:         rt.store,
		DB:            rt.store,
		Submission:    rt.submission,
		Voting:        rt.voting,
		Stories:       rt.stories,
		Claims:        rt.claims,
		Royalties:     rt.royalties,
		Rituals:       rt.rituals,
		Mint:          rt.mint,
		Profile:       rt.profile,
		Notifications: rt.notifications,
	}
}

func (rt *runtime) outboxWorker() *workers.OutboxWorker {
	return workers.NewOutboxWorker(rt.store, rt.effects, rt.alerter, rt.log,
		rt.cfg.OutboxInterval, rt.cfg.OutboxBatchSize, services.SystemClock)
}
