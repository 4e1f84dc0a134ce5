package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/foldersync/internal/model"
)

// RunHistory is the output of the runs command.
type RunHistory struct {
	SyncID string          `json:"sync_id"`
	Runs   []model.SyncRun `json:"runs"`
}

// WriteText implements TextWriter.
func (h RunHistory) WriteText(w io.Writer) error {
	if len(h.Runs) == 0 {
		_, err := fmt.Fprintf(w, "No runs recorded for %s.\n", h.SyncID)
		return err
	}
	for _, r := range h.Runs {
		fmt.Fprintf(w, "%s  %s  %-9s %s -> %s  created=%d updated=%d errors=%d\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.ID, r.Status,
			r.SourceDataFolderID, r.DestinationDataFolderID,
			r.RecordsCreated, r.RecordsUpdated, len(r.Errors))
		if r.FatalError != "" {
			fmt.Fprintf(w, "    fatal: %s\n", r.FatalError)
		}
	}
	return nil
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs <sync-id>",
		Short: "Show the run history of a sync",
		Long: `Show the recorded runs of a sync, oldest first.

Each table mapping run is one entry with its status (succeeded, partial or
failed), record counts and errors.

Examples:
  foldersync runs 0192f0c4-7d2e-7b61-9a3e-5a1f2c3d4e5f --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := openApp(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return handleAppError(f, err)
			}
			defer app.Close()

			ctx := cmd.Context()
			if _, err := app.Service.GetSync(ctx, args[0], app.Actor()); err != nil {
				return reportSyncLookupError(f, args[0], err)
			}
			runs, err := app.Store.ListRuns(ctx, args[0], limit)
			if err != nil {
				_ = f.Error(ErrCodeGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "list runs", err)
			}
			return f.Success(RunHistory{SyncID: args[0], Runs: runs})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "show at most this many recent runs (0 for all)")
	return cmd
}
