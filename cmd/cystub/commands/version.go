package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/cystub/display"
	"github.com/teranos/cystub/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show cystub version information",
	Long:  `Display version, build time, commit hash, and platform information for the cystub binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := display.FormatFromCommand(cmd)
		if err != nil {
			return err
		}

		info := version.Get()
		if format != display.FormatText {
			return display.Write(cmd.OutOrStdout(), format, info)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, info.String())
		if !info.Release() {
			fmt.Fprintln(out, "Development build")
		}
		fmt.Fprintf(out, "Platform: %s\n", info.Platform)
		fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
		return nil
	},
}
