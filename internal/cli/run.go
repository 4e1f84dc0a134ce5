package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/foldersync/internal/engine"
	"github.com/roach88/foldersync/internal/model"
)

// RunReport is the outcome of one sync run.
type RunReport struct {
	SyncID string                         `json:"sync_id"`
	Tables []model.SyncTableMappingResult `json:"tables"`
	Fatal  string                         `json:"fatal,omitempty"`
}

// RecordErrorCount returns the number of per-record errors across tables.
func (r RunReport) RecordErrorCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Errors)
	}
	return n
}

// WriteText implements TextWriter.
func (r RunReport) WriteText(w io.Writer) error {
	for _, t := range r.Tables {
		fmt.Fprintf(w, "%s -> %s: %d created, %d updated, %d errors\n",
			t.SourceDataFolderID, t.DestinationDataFolderID,
			t.RecordsCreated, t.RecordsUpdated, len(t.Errors))
		for _, e := range t.Errors {
			if e.Path != "" {
				fmt.Fprintf(w, "  %s (%s): %s\n", e.SourceRemoteID, e.Path, e.Error)
			} else {
				fmt.Fprintf(w, "  %s: %s\n", e.SourceRemoteID, e.Error)
			}
		}
	}
	if r.Fatal != "" {
		_, err := fmt.Fprintf(w, "aborted: %s\n", r.Fatal)
		return err
	}
	return nil
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <sync-id>",
		Short: "Run every table mapping of a sync once",
		Long: `Run every table mapping of a sync in order and commit the results.

Per-record failures do not stop the run; they are reported and recorded in
the run history. A fatal error aborts the remaining table mappings.

Exit codes:
  0 - All records synced
  1 - Run finished with per-record errors
  2 - Run aborted or command error

Examples:
  foldersync run 0192f0c4-7d2e-7b61-9a3e-5a1f2c3d4e5f
  foldersync run 0192f0c4-7d2e-7b61-9a3e-5a1f2c3d4e5f --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := openApp(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return handleAppError(f, err)
			}
			defer app.Close()

			report, err := runOnce(cmd.Context(), app, args[0])
			return reportRun(f, report, err)
		},
	}
}

// runOnce runs a sync and packs the outcome into a report.
func runOnce(ctx context.Context, app *App, syncID string) (RunReport, error) {
	tables, err := app.Engine.RunSync(ctx, syncID, app.Actor())
	report := RunReport{SyncID: syncID, Tables: tables}
	if report.Tables == nil {
		report.Tables = []model.SyncTableMappingResult{}
	}
	if err != nil {
		report.Fatal = err.Error()
	}
	return report, err
}

// reportRun prints a run report and maps it to an exit code.
func reportRun(f *OutputFormatter, report RunReport, err error) error {
	switch {
	case isMissingSync(err):
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run "+report.SyncID, err)
	case err != nil:
		_ = f.Error(ErrCodeRunFailed, "sync run aborted", report)
		return WrapExitError(ExitCommandError, "run "+report.SyncID, err)
	case report.RecordErrorCount() > 0:
		_ = f.Error(ErrCodeRecordFails, fmt.Sprintf("%d record(s) failed", report.RecordErrorCount()), report)
		return NewExitError(ExitFailure, fmt.Sprintf("run %s: %d record(s) failed", report.SyncID, report.RecordErrorCount()))
	}
	return f.Success(report)
}

// isMissingSync reports whether a run failed because the sync itself does
// not exist, as opposed to one of its folders.
func isMissingSync(err error) bool {
	var se *engine.SyncError
	return errors.As(err, &se) && se.Code == engine.ErrCodeNotFound && se.DataFolderID == ""
}
