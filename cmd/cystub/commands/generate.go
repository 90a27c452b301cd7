package commands

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/cystub/display"
	"github.com/teranos/cystub/stubgen"
	"github.com/teranos/cystub/sym"
)

var generateFlags sourceFlags

// GenerateCmd generates stubs for every extension source under a root
var GenerateCmd = &cobra.Command{
	Use:   "generate [root]",
	Short: sym.Short("generate", "Generate .pyi stubs for Cython sources"),
	Long: `Generate .pyi stubs for every Cython source under root (default: .).

All sources are compiled in one batch in a temporary build directory, then
mypy stubgen runs once per module. Each stub is written next to its source
(or under --output, mirroring the source layout) and repaired.

A module stubgen cannot handle is reported as skipped; a failed build or a
stub that does not parse aborts the run.

Examples:
  cystub generate                          # Sources under the working directory
  cystub generate src --exclude 'tests/**' # Skip test extensions
  cystub generate src -o typings           # Write stubs to typings/
  cystub generate src --format yaml        # Machine-readable summary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateFlags.register(GenerateCmd)
	GenerateCmd.Flags().StringVarP(&generateFlags.output, "output", "o", "", "Write stubs under this directory instead of next to the sources")
	GenerateCmd.Flags().String("format", "text", "Output format: text, json, yaml, toml")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	format, err := display.FormatFromCommand(cmd)
	if err != nil {
		return err
	}

	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	opts, err := generateFlags.options(root, cfg)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cmd, cfg)
	if err != nil {
		return err
	}

	var spinner *pterm.SpinnerPrinter
	if format == display.FormatText {
		spinner, _ = pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).Start("Generating stubs...")
	}
	result, err := pipeline.Run(cmd.Context(), opts)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return err
	}

	if format != display.FormatText {
		return display.Write(cmd.OutOrStdout(), format, result)
	}
	printResult(cmd, result)
	return nil
}

// printResult renders a pipeline result for humans
func printResult(cmd *cobra.Command, result *stubgen.Result) {
	out := cmd.OutOrStdout()
	if len(result.Modules) == 0 {
		fmt.Fprintln(out, "No Cython sources found")
		return
	}

	for _, rel := range result.Transformed {
		fmt.Fprintf(out, sym.OK+" %s\n", rel)
	}
	for _, name := range result.Skipped {
		fmt.Fprintf(out, sym.Skip+" %s (no stub generated)\n", name)
	}

	outRoot := result.OutputRoot
	if wd, err := filepath.Abs("."); err == nil {
		if rel, err := filepath.Rel(wd, outRoot); err == nil {
			outRoot = rel
		}
	}
	fmt.Fprintf(out, "\n%d stubs written to %s", len(result.Transformed), outRoot)
	if result.Repaired > 0 {
		fmt.Fprintf(out, ", %d annotations repaired", result.Repaired)
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, ", %d modules skipped", len(result.Skipped))
	}
	fmt.Fprintln(out)
}
