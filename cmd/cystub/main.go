package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/cystub/am"
	"github.com/teranos/cystub/cmd/cystub/commands"
	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
	"github.com/teranos/cystub/sym"
)

var rootCmd = &cobra.Command{
	Use:   "cystub",
	Short: "cystub - Type stubs for Cython extensions",
	Long: `cystub - Generate .pyi type stubs for Cython extension modules.

cystub compiles every .pyx source under a directory, runs mypy stubgen on
the resulting extension modules, and repairs the stubs so they type-check:
pickling support hooks and dunder attributes are removed, and
self-referential annotations are replaced with a placeholder type.

Available commands:
%s
Examples:
  cystub generate src/             # Stubs for every .pyx under src/
  cystub check src/                # Fail when a stub is stale (CI)
  cystub transform pkg/core.pyi    # Repair a stub produced elsewhere
  cystub watch src/ -v             # Regenerate while editing`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")

		cfg, err := am.Load()
		if err != nil {
			return err
		}
		if err := logger.Initialize(jsonLogs || cfg.Log.JSON, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		logger.SetTheme(cfg.GetLogTheme())
		logger.Debugw("Logger initialized", "verbosity", logger.LevelName(verbosity))
		return nil
	},
}

func init() {
	rootCmd.Long = fmt.Sprintf(rootCmd.Long, commandList())

	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs to stderr as JSON")

	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.TransformCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Cleanup()

	if err != nil {
		printError(err)
		os.Exit(commands.ExitCode(err))
	}
}

// commandList renders the glyph, name and description of every command
func commandList() string {
	var b strings.Builder
	for _, name := range sym.Commands() {
		fmt.Fprintf(&b, "  %s %-10s %s\n", sym.ForCommand(name), name, sym.Describe(name))
	}
	return b.String()
}

// printError shows the error with its hints; -vv adds the stack trace
func printError(err error) {
	verbosity, _ := rootCmd.PersistentFlags().GetCount("verbose")
	if verbosity >= logger.VerbosityDebug {
		pterm.Error.Println(fmt.Sprintf("%+v", err))
	} else {
		pterm.Error.Println(err.Error())
	}
	if hint := errors.FlattenHints(err); hint != "" {
		pterm.Info.Println(hint)
	}
}
