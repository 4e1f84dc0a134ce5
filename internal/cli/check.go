package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/foldersync/internal/compiler"
)

// CheckResult is the outcome of checking a definitions directory.
type CheckResult struct {
	Valid     bool         `json:"valid"`
	Syncs     []string     `json:"syncs"`
	FileCount int          `json:"file_count"`
	Errors    []CheckError `json:"errors,omitempty"`
}

// CheckError is one finding, tagged with the sync it belongs to.
type CheckError struct {
	Sync    string `json:"sync,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// WriteText implements TextWriter.
func (r CheckResult) WriteText(w io.Writer) error {
	for _, e := range r.Errors {
		prefix := e.Code
		if e.Sync != "" {
			prefix = fmt.Sprintf("%s %s", e.Code, e.Sync)
		}
		if e.Field != "" {
			fmt.Fprintf(w, "  [%s] %s: %s\n", prefix, e.Field, e.Message)
		} else {
			fmt.Fprintf(w, "  [%s] %s\n", prefix, e.Message)
		}
	}
	if r.Valid {
		_, err := fmt.Fprintf(w, "%d sync(s) valid in %d file(s)\n", len(r.Syncs), r.FileCount)
		return err
	}
	return nil
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <defs-dir>",
		Short: "Compile and validate sync definitions",
		Long: `Compile the CUE sync definitions of a directory and validate each one.

Nothing is written. Use "sync apply" to store the definitions.

Exit codes:
  0 - All definitions valid
  1 - One or more definitions invalid
  2 - Definitions could not be loaded

Examples:
  foldersync check ./syncs
  foldersync check ./syncs --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	f.VerboseLog("Loading definitions from %s", dir)

	result, loadErrs := LoadDefinitions(dir, LoadModeCollectAll)
	if result == nil {
		return reportLoadErrors(f, loadErrs)
	}

	check := CheckResult{Valid: true, FileCount: result.FileCount, Syncs: []string{}}
	for _, err := range loadErrs {
		check.Valid = false
		check.Errors = append(check.Errors, checkErrorFrom(err))
	}
	for _, def := range result.Syncs {
		check.Syncs = append(check.Syncs, def.Name)
		for _, verr := range compiler.Validate(def) {
			check.Valid = false
			check.Errors = append(check.Errors, CheckError{
				Sync:    def.Name,
				Code:    verr.Code,
				Field:   verr.Field,
				Message: verr.Message,
			})
		}
		f.VerboseLog("Checked sync %s (%d table mappings)", def.Name, len(def.TableMappings))
	}

	if !check.Valid {
		if err := f.Error(ErrCodeInvalid, fmt.Sprintf("%d problem(s) found", len(check.Errors)), check); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "definitions invalid")
	}
	return f.Success(check)
}

// reportLoadErrors prints errors that prevented loading and returns a
// command error.
func reportLoadErrors(f *OutputFormatter, errs []error) error {
	code, msg := ErrCodeGeneric, "failed to load definitions"
	details := make([]string, 0, len(errs))
	for _, err := range errs {
		details = append(details, err.Error())
	}
	if len(errs) > 0 {
		if le, ok := errs[0].(*LoadError); ok {
			code, msg = le.Code, le.Message
		}
	}
	_ = f.Error(code, msg, details)
	return NewExitError(ExitCommandError, msg)
}

func checkErrorFrom(err error) CheckError {
	if le, ok := err.(*LoadError); ok {
		msg := le.Message
		if le.Pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", le.Pos.Filename(), le.Pos.Line(), le.Pos.Column(), le.Message)
		}
		return CheckError{Code: le.Code, Message: msg}
	}
	return CheckError{Code: ErrCodeGeneric, Message: err.Error()}
}
