package display

import (
	"github.com/spf13/cobra"
)

// FormatFromCommand resolves the output format of cmd: --json wins over
// --format, which wins over the root --json flag.
func FormatFromCommand(cmd *cobra.Command) (Format, error) {
	if cmd == nil {
		return FormatText, nil
	}

	if f := cmd.Flags().Lookup("json"); f != nil && cmd.Flags().Changed("json") {
		if on, _ := cmd.Flags().GetBool("json"); on {
			return FormatJSON, nil
		}
		return FormatText, nil
	}

	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		return ParseFormat(f.Value.String())
	}

	if on, _ := cmd.Root().PersistentFlags().GetBool("json"); on {
		return FormatJSON, nil
	}

	if f := cmd.Flags().Lookup("format"); f != nil {
		return ParseFormat(f.Value.String())
	}
	return FormatText, nil
}
