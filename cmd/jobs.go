package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// newJobsCmd runs the scheduled jobs once, for cron hosts and manual recovery.
func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run one background job now",
	}
	cmd.AddCommand(
		jobCmd("sync-claims", "Create claims for every user with unclaimed points", func(ctx context.Context, rt *runtime) (any, error) {
			return rt.claims.SyncAll(ctx)
		}),
		jobCmd("merkle", "Rebuild the merkle tree over open claims", func(ctx context.Context, rt *runtime) (any, error) {
			return rt.claims.BuildMerkleTree(ctx)
		}),
		jobCmd("select-winners", "Pick winners for every ended weekly challenge", func(ctx context.Context, rt *runtime) (any, error) {
			return rt.rituals.ProcessCompletedChallenges(ctx)
		}),
		jobCmd("daily-prompt", "Generate today's prompt if missing", func(ctx context.Context, rt *runtime) (any, error) {
			return rt.rituals.GenerateDailyPrompt(ctx)
		}),
		jobCmd("weekly-challenge", "Open this week's challenge if none is running", func(ctx context.Context, rt *runtime) (any, error) {
			return rt.rituals.OpenWeeklyChallenge(ctx)
		}),
		jobCmd("drain-outbox", "Execute one batch of due outbox effects", func(ctx context.Context, rt *runtime) (any, error) {
			n, err := rt.outboxWorker().Drain(ctx)
			return map[string]int{"completed": n}, err
		}),
	)
	return cmd
}

func jobCmd(use, short string, run func(ctx context.Context, rt *runtime) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rt, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := run(ctx, rt)
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
