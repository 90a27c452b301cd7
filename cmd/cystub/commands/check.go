package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/cystub/display"
	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/sym"
)

var checkFlags sourceFlags

// CheckCmd verifies that committed stubs match freshly generated ones
var CheckCmd = &cobra.Command{
	Use:   "check [root]",
	Short: sym.Short("check", "Check that committed stubs are up to date"),
	Long: `Generate stubs into a temporary directory and compare them with the
stubs next to the sources. Nothing in the source tree is modified.

Exits with status 1 when a stub differs, is missing, or could not be
regenerated, so it can gate CI.

Examples:
  cystub check src
  cystub check src --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkFlags.register(CheckCmd)
	CheckCmd.Flags().String("format", "text", "Output format: text, json, yaml, toml")
}

func runCheck(cmd *cobra.Command, args []string) error {
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
	opts, err := checkFlags.options(root, cfg)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cmd, cfg)
	if err != nil {
		return err
	}

	check, err := pipeline.Check(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if format != display.FormatText {
		if err := display.Write(cmd.OutOrStdout(), format, check); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, rel := range check.Differences {
			fmt.Fprintf(out, sym.Fail+" %s differs\n", rel)
		}
		for _, rel := range check.Missing {
			fmt.Fprintf(out, sym.Fail+" %s is missing\n", rel)
		}
		for _, rel := range check.Unverified {
			fmt.Fprintf(out, sym.Skip+" %s could not be regenerated\n", rel)
		}
		if check.UpToDate {
			fmt.Fprintf(out, sym.OK+" %d stubs are up to date\n", len(check.Result.Transformed))
		}
	}

	if !check.UpToDate {
		return errors.WithHint(errOutOfDate, "run 'cystub generate' and commit the updated stubs")
	}
	return nil
}
