package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/foldersync/internal/model"
)

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage stored sync configurations",
	}
	cmd.AddCommand(newSyncApplyCommand(rootOpts))
	cmd.AddCommand(newSyncListCommand(rootOpts))
	cmd.AddCommand(newSyncDeleteCommand(rootOpts))
	return cmd
}

// ApplyResult lists what sync apply did per definition.
type ApplyResult struct {
	Applied []AppliedSync `json:"applied"`
}

// AppliedSync is one stored definition.
type AppliedSync struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Created       bool   `json:"created"`
	TableMappings int    `json:"table_mappings"`
}

// WriteText implements TextWriter.
func (r ApplyResult) WriteText(w io.Writer) error {
	for _, s := range r.Applied {
		verb := "updated"
		if s.Created {
			verb = "created"
		}
		if _, err := fmt.Fprintf(w, "%s %s (%s, %d table mappings)\n", verb, s.Name, s.ID, s.TableMappings); err != nil {
			return err
		}
	}
	return nil
}

func newSyncApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <defs-dir>",
		Short: "Create or update every sync defined in a directory",
		Long: `Compile the CUE sync definitions of a directory and store them.

A sync whose name already exists in the workbook is updated in place and
keeps its id. Definitions are validated before anything is written; one
invalid definition aborts the whole apply.

Examples:
  foldersync sync apply ./syncs --workbook wb1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncApply(rootOpts, args[0], cmd)
		},
	}
}

func runSyncApply(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	loaded, loadErrs := LoadDefinitions(dir, LoadModeFailFast)
	if loaded == nil || len(loadErrs) > 0 {
		return reportLoadErrors(f, loadErrs)
	}

	app, err := openApp(cmd.Context(), opts, cmd)
	if err != nil {
		return handleAppError(f, err)
	}
	defer app.Close()

	ctx := cmd.Context()
	result := ApplyResult{Applied: make([]AppliedSync, 0, len(loaded.Syncs))}
	for _, def := range loaded.Syncs {
		sync, created, err := app.Service.ApplySync(ctx, app.Config.Workbook, def, app.Actor())
		if err != nil {
			if errors.Is(err, model.ErrBadConfiguration) {
				_ = f.Error(ErrCodeInvalid, fmt.Sprintf("sync %s is invalid", def.Name), strings.Split(err.Error(), "\n"))
				return WrapExitError(ExitFailure, fmt.Sprintf("sync %s is invalid", def.Name), err)
			}
			_ = f.Error(ErrCodeGeneric, fmt.Sprintf("apply sync %s: %v", def.Name, err), nil)
			return WrapExitError(ExitCommandError, "apply sync "+def.Name, err)
		}
		result.Applied = append(result.Applied, AppliedSync{
			ID:            sync.ID,
			Name:          sync.Name,
			Created:       created,
			TableMappings: len(sync.TableMappings),
		})
	}
	return f.Success(result)
}

// SyncList is the output of sync list.
type SyncList struct {
	Syncs []model.Sync `json:"syncs"`
}

// WriteText implements TextWriter.
func (l SyncList) WriteText(w io.Writer) error {
	if len(l.Syncs) == 0 {
		_, err := fmt.Fprintln(w, "No syncs.")
		return err
	}
	for _, s := range l.Syncs {
		fmt.Fprintf(w, "%s  %s\n", s.ID, s.Name)
		for _, tm := range s.TableMappings {
			fmt.Fprintf(w, "    %s -> %s (%d columns)\n",
				tm.SourceDataFolderID, tm.DestinationDataFolderID, len(tm.ColumnMappings))
		}
	}
	return nil
}

func newSyncListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the syncs of the workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := openApp(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return handleAppError(f, err)
			}
			defer app.Close()

			syncs, err := app.Service.FindAllForWorkbook(cmd.Context(), app.Config.Workbook, app.Actor())
			if err != nil {
				_ = f.Error(ErrCodeGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "list syncs", err)
			}
			if syncs == nil {
				syncs = []model.Sync{}
			}
			return f.Success(SyncList{Syncs: syncs})
		},
	}
}

func newSyncDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <sync-id>",
		Short: "Delete a sync with its identity mappings and run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			app, err := openApp(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return handleAppError(f, err)
			}
			defer app.Close()

			if err := app.Service.DeleteSync(cmd.Context(), args[0], app.Actor()); err != nil {
				return reportSyncLookupError(f, args[0], err)
			}
			return f.Success(fmt.Sprintf("deleted %s", args[0]))
		},
	}
}

// reportSyncLookupError prints a failure to find or load a sync.
func reportSyncLookupError(f *OutputFormatter, syncID string, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		msg := fmt.Sprintf("sync not found: %s", syncID)
		_ = f.Error(ErrCodeNotFound, msg, nil)
		return WrapExitError(ExitCommandError, msg, err)
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "sync "+syncID, err)
}
