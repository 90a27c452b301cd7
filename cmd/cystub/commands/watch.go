package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/stubgen"
	"github.com/teranos/cystub/sym"
)

var (
	watchFlags    sourceFlags
	watchDebounce time.Duration
)

// WatchCmd regenerates stubs whenever a source changes
var WatchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: sym.Short("watch", "Regenerate stubs whenever a Cython source changes"),
	Long: `Generate stubs once, then watch root for changes to Cython sources and
regenerate after each burst of edits. Failed runs are reported and watching
continues. Stop with Ctrl+C.

Examples:
  cystub watch src
  cystub watch src --debounce 2s -v`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchFlags.register(WatchCmd)
	WatchCmd.Flags().StringVarP(&watchFlags.output, "output", "o", "", "Write stubs under this directory instead of next to the sources")
	WatchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a rerun")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	opts, err := watchFlags.options(root, cfg)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cmd, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	watcher, err := stubgen.NewWatcher(pipeline, opts, func(result *stubgen.Result, err error) {
		stamp := time.Now().Format("15:04:05")
		if err != nil {
			fmt.Fprintf(out, "%s "+sym.Fail+" %s\n", stamp, err)
			if hint := errors.FlattenHints(err); hint != "" {
				fmt.Fprintf(out, "         %s\n", hint)
			}
			return
		}
		fmt.Fprintf(out, "%s "+sym.OK+" %d stubs written", stamp, len(result.Transformed))
		if len(result.Skipped) > 0 {
			fmt.Fprintf(out, ", %d skipped", len(result.Skipped))
		}
		fmt.Fprintln(out)
	})
	if err != nil {
		return err
	}
	watcher.SetDebounce(watchDebounce)

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", root)
	return watcher.Run(cmd.Context())
}
