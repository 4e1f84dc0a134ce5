package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/foldersync/internal/gitstore"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch <sync-id>",
		Short: "Re-run a sync whenever the workbook branch moves",
		Long: `Run a sync, then run it again each time the workbook branch gets a new
commit. Bursts of ref updates within the debounce window trigger one run.

Commits written by the sync itself move the branch too; the follow-up run
finds nothing to change and commits nothing.

Run failures are reported and watching continues. Stop with Ctrl-C.

Examples:
  foldersync watch 0192f0c4-7d2e-7b61-9a3e-5a1f2c3d4e5f --debounce 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, rootOpts, cmd)
			if err != nil {
				return handleAppError(f, err)
			}
			defer app.Close()

			syncID := args[0]
			if _, err := app.Service.GetSync(ctx, syncID, app.Actor()); err != nil {
				return reportSyncLookupError(f, syncID, err)
			}

			run := func(ctx context.Context, head string) {
				report, err := runOnce(ctx, app, syncID)
				if err != nil && ctx.Err() != nil {
					return
				}
				app.Logger.Info("sync run finished",
					"sync_id", syncID,
					"head", head,
					"record_errors", report.RecordErrorCount(),
					"fatal", report.Fatal)
				// Exit codes only matter for one-shot runs.
				_ = reportRun(f, report, err)
			}

			if !skipInitial {
				head, err := app.Repo.Head(ctx, app.Config.Branch)
				if err != nil {
					_ = f.Error(ErrCodeGeneric, err.Error(), nil)
					return WrapExitError(ExitCommandError, "read branch head", err)
				}
				run(ctx, head)
			}

			if err := app.Repo.Watch(ctx, app.Config.Branch, app.Config.Watch.Debounce, gitstore.ChangeFunc(run)); err != nil {
				_ = f.Error(ErrCodeGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "watch", err)
			}
			return nil
		},
	}

	cmd.Flags().Duration("debounce", gitstore.DefaultDebounce, "quiet period before a branch change triggers a run")
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first branch change before running")
	return cmd
}
