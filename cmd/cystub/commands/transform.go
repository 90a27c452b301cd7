package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/cystub/display"
	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/pyi"
	"github.com/teranos/cystub/sym"
)

// TransformCmd repairs existing stub files
var TransformCmd = &cobra.Command{
	Use:   "transform <file.pyi>...",
	Short: sym.Short("transform", "Repair existing stub files in place"),
	Long: `Apply the stub repairs to files generated elsewhere: pickling support
hooks and dunder attributes are removed, and self-referential annotations are
replaced with a placeholder type declared at the top of the file.

Pass "-" to read a stub from stdin and write the result to stdout.

Examples:
  cystub transform out/pkg/core.pyi
  stubgen -m pkg.core -o - | cystub transform -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTransform,
}

// transformSummary is the machine-readable result of transform
type transformSummary struct {
	File   string     `json:"file" yaml:"file" toml:"file"`
	Report pyi.Report `json:"report" yaml:"report" toml:"report"`
}

type transformResult struct {
	Files []transformSummary `json:"files" yaml:"files" toml:"files"`
}

func init() {
	TransformCmd.Flags().String("format", "text", "Output format: text, json, yaml, toml")
}

func runTransform(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && args[0] == "-" {
		return transformStdin(cmd)
	}

	format, err := display.FormatFromCommand(cmd)
	if err != nil {
		return err
	}

	summaries := make([]transformSummary, 0, len(args))
	for _, path := range args {
		if path == "-" {
			return errors.New(`"-" cannot be combined with file arguments`)
		}
		report, err := pyi.TransformFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		summaries = append(summaries, transformSummary{File: path, Report: report})
	}

	if format != display.FormatText {
		return display.Write(cmd.OutOrStdout(), format, transformResult{Files: summaries})
	}

	out := cmd.OutOrStdout()
	for _, s := range summaries {
		if !s.Report.Changed() {
			fmt.Fprintf(out, "  %s unchanged\n", s.File)
			continue
		}
		fmt.Fprintf(out, sym.OK+" %s (%d hooks, %d attributes removed, %d annotations repaired)\n",
			s.File, len(s.Report.RemovedHooks), len(s.Report.RemovedAttributes), len(s.Report.Repaired))
	}
	return nil
}

func transformStdin(cmd *cobra.Command) error {
	src, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return errors.Wrap(err, "failed to read stdin")
	}
	out, _, err := pyi.TransformSource(cmd.Context(), src)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return errors.Wrap(err, "failed to write stdout")
	}
	return nil
}
