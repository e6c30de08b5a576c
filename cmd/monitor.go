package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/errs"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Deadline monitor commands",
}

var monitorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Time out expired acceptances and rework windows",
	RunE: withApp(func(cmd *cobra.Command, rt *runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		once, _ := cmd.Flags().GetBool("once")
		if once {
			result, err := rt.Monitor.RunOnce(ctx, time.Now().UTC())
			if _, werr := fmt.Fprintf(cmd.OutOrStdout(),
				"expired=%d timed_out=%d rework_expired=%d rework_reverted=%d raced=%d skipped=%d lock_held=%t\n",
				result.Expired, result.TimedOut, result.ReworkExpired, result.ReworkReverted,
				result.Raced, result.Skipped, result.LockHeld,
			); werr != nil {
				return errs.Wrap(werr, "write monitor output")
			}
			if err != nil {
				return errs.Wrap(err, "run deadline monitor once")
			}
			return nil
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		var wg sync.WaitGroup
		if rt.Policy != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rt.Policy.Watch(runCtx); err != nil {
					logging.Warn(runCtx, "policy watcher stopped", slog.Any("err", errs.Loggable(err)))
				}
			}()
		}

		err := rt.Monitor.Start(runCtx)
		cancel()
		wg.Wait()
		if err != nil {
			return errs.Wrap(err, "run deadline monitor")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.AddCommand(monitorRunCmd)
	monitorRunCmd.Flags().Bool("once", false, "Run a single scan and exit")
}
