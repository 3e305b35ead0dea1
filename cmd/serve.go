package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lore-machine/handlers"
	"lore-machine/repository"
	"lore-machine/workers"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		skipMigrate bool
		noWorkers   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the outbox worker and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			log := rt.log

			if rt.cfg.GatewayToken == "" {
				return errors.New("LORE_SERVICE_TOKEN is not set, service cannot authenticate the gateway")
			}

			if !skipMigrate {
				if err := repository.Migrate(rt.db); err != nil {
					return err
				}
				log.Info("✅ database migrated")
			}

			var outboxDone <-chan struct{}
			if !noWorkers {
				outboxDone = rt.outboxWorker().Start(ctx)

				sched, err := workers.NewScheduler(rt.cfg.Location, rt.rituals, rt.claims, log)
				if err != nil {
					return err
				}
				sched.Start()
				defer func() {
					if err := sched.Shutdown(); err != nil {
						log.Warnf("⚠️ scheduler shutdown: %v", err)
					}
				}()
			}

			app := handlers.NewApp(rt.cfg, rt.handlerServices(), log)
			go func() {
				if err := app.Listen(":" + rt.cfg.Port); err != nil {
					log.Errorf("Server error: %v", err)
					stop()
				}
			}()

			log.Infof("✅ Server running on http://localhost:%s", rt.cfg.Port)
			log.Infof("✅ CORS configured for origins: %v", rt.cfg.AllowedOrigins)

			<-ctx.Done()
			log.Info("Shutting down server...")
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.Warnf("⚠️ http shutdown: %v", err)
			}
			if outboxDone != nil {
				<-outboxDone
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run AutoMigrate on start")
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "serve HTTP only, without the outbox worker and scheduler")
	return cmd
}
