package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// MappingCheck is the output of validate-mapping.
type MappingCheck struct {
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	FieldMap    map[string]string `json:"field_map"`
	Compatible  bool              `json:"compatible"`
}

// WriteText implements TextWriter.
func (m MappingCheck) WriteText(w io.Writer) error {
	verdict := "compatible"
	if !m.Compatible {
		verdict = "incompatible"
	}
	_, err := fmt.Fprintf(w, "%s -> %s: %s\n", m.Source, m.Destination, verdict)
	return err
}

// NewValidateMappingCommand creates the validate-mapping command.
func NewValidateMappingCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		source, destination string
		pairs               []string
	)

	cmd := &cobra.Command{
		Use:   "validate-mapping",
		Short: "Check that a source folder can feed a destination folder",
		Long: `Check a folder mapping against the schemas of both folders.

A mapping between folders where either side has no schema is accepted.

Exit codes:
  0 - Mapping compatible
  1 - Mapping rejected
  2 - Command error

Examples:
  foldersync validate-mapping --source posts --destination cms --map title=name --map price=pricing.amount`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			fieldMap, err := parseFieldMap(pairs)
			if err != nil {
				_ = f.Error(ErrCodeConfig, err.Error(), nil)
				return WrapExitError(ExitCommandError, "parse --map", err)
			}

			app, err := openApp(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return handleAppError(f, err)
			}
			defer app.Close()

			ok, err := app.Service.ValidateFolderMapping(cmd.Context(), app.Config.Workbook, source, destination, fieldMap, app.Actor())
			if err != nil {
				_ = f.Error(ErrCodeGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "validate mapping", err)
			}

			check := MappingCheck{Source: source, Destination: destination, FieldMap: fieldMap, Compatible: ok}
			if !ok {
				_ = f.Error(ErrCodeIncompatible, "folder mapping rejected", check)
				return NewExitError(ExitFailure, "folder mapping rejected")
			}
			return f.Success(check)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source data folder id")
	cmd.Flags().StringVar(&destination, "destination", "", "destination data folder id")
	cmd.Flags().StringArrayVar(&pairs, "map", nil, "field mapping source=destination (repeatable)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

// parseFieldMap turns source=destination pairs into a map.
func parseFieldMap(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		src, dst, ok := strings.Cut(p, "=")
		src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
		if !ok || src == "" || dst == "" {
			return nil, fmt.Errorf("invalid field mapping %q: want source=destination", p)
		}
		if _, dup := m[src]; dup {
			return nil, fmt.Errorf("field %q mapped twice", src)
		}
		m[src] = dst
	}
	return m, nil
}
