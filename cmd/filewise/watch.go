package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/app"
	"github.com/Jj0520/FileWise-sub000/internal/indexer"
	"github.com/Jj0520/FileWise-sub000/internal/schedule"
)

const defaultWatchSchedule = "*/15 * * * *"

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "watch <folder>",
		Short: "Re-index a folder on a cron schedule",
		Long:  "Watch indexes the folder once, then again on every tick of the schedule (env FILEWISE_SCHEDULE). A tick is skipped while the previous run is still active.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if !cmd.Flags().Changed("schedule") && a.Config.Schedule != "" {
				spec = a.Config.Schedule
			}

			job := indexJob(a, root)
			if err := job.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			sched := schedule.NewCronScheduler(a.Logger.Named("schedule"))
			if err := sched.AddJob(job, spec); err != nil {
				return err
			}
			if next, ok := sched.Next(job.Name()); ok && !next.IsZero() {
				a.Logger.Info("next run", zap.Time("at", next))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s on %q, press Ctrl+C to stop\n", root, spec)

			sched.Run(cmd.Context())
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "schedule", defaultWatchSchedule, "cron spec or descriptor such as @hourly")
	return cmd
}

// indexJob re-indexes root. Errors are logged by the scheduler and the next
// tick tries again.
func indexJob(a *app.App, root string) schedule.Job {
	return schedule.JobFunc{
		JobName: "index:" + root,
		Fn: func(ctx context.Context) error {
			if a.Indexer.Running() {
				return indexer.ErrIndexInProgress
			}
			stats, err := a.Index(ctx, root, false, nil)
			if stats != nil {
				a.Logger.Info("index run",
					zap.String("root", root),
					zap.Int("indexed", stats.FilesIndexed),
					zap.Int("unchanged", stats.FilesUnchanged),
					zap.Int("failed", stats.FilesFailed),
					zap.Int("pruned", stats.FilesPruned),
					zap.Duration("duration", stats.Duration))
			}
			return err
		},
	}
}
