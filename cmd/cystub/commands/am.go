package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/cystub/am"
	"github.com/teranos/cystub/display"
	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.Short("am", "Manage cystub configuration"),
	Long: sym.AM + ` am: Manage cystub configuration ("I am")

Display and validate cystub configuration settings.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (CYSTUB_* prefix)
3. Project config (nearest cystub.toml)
4. pyproject.toml [tool.cystub] table (nearest)
5. User config (~/.cystub/am.toml)
6. System config (/etc/cystub/am.toml)
7. Default values

Examples:
  cystub am show                    # Show current configuration
  cystub am show --format json      # Show configuration in JSON format
  cystub am get tools.python        # Get specific config value
  cystub am validate                # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current cystub configuration from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., tools.python, discovery.exclude)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current cystub configuration is valid",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration sources in order of precedence, showing
which files exist and which settings each one provides.`,
	RunE: runAmWhere,
}

func init() {
	amShowCmd.Flags().String("format", "toml", "Output format: toml, json, yaml")
	amWhereCmd.Flags().String("format", "text", "Output format: text, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	format, err := display.FormatFromCommand(cmd)
	if err != nil {
		return err
	}
	if format == display.FormatText {
		format = display.FormatTOML
	}

	out := cmd.OutOrStdout()
	if format != display.FormatJSON {
		fmt.Fprintln(out, "# cystub configuration")
	}
	return display.Write(out, format, cfg)
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.WithHint(errors.Newf("configuration key %q not found", key),
			"run 'cystub am show' to list the available keys")
	}

	out := cmd.OutOrStdout()
	switch value := am.Get(key); value.(type) {
	case []interface{}, []string, map[string]interface{}:
		fmt.Fprintln(out, value)
	default:
		fmt.Fprintln(out, am.GetString(key))
	}
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), sym.OK+" Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}

	format, err := display.FormatFromCommand(cmd)
	if err != nil {
		return err
	}
	if format != display.FormatText {
		return display.Write(cmd.OutOrStdout(), format, intro)
	}

	out := cmd.OutOrStdout()
	home, _ := os.UserHomeDir()

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  [default]      Built-in defaults")
	for _, file := range intro.Files {
		status := "missing"
		if file.Exists {
			status = "found"
		}
		path := file.Path
		if path == "" {
			path = "(none found)"
		} else if home != "" {
			path = shortenHome(path, home)
		}
		fmt.Fprintf(out, "  [%s]%*s%s (%s)\n", file.Source, 13-len(file.Source), "", path, status)
	}
	fmt.Fprintf(out, "  [%s]  %s_* environment variables\n", am.SourceEnvironment, am.EnvPrefix)
	fmt.Fprintln(out)

	grouped := intro.SettingsBySource()
	fmt.Fprintln(out, "Active configuration:")
	for _, source := range am.SourceOrder {
		settings := grouped[source]
		if len(settings) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s: %d settings\n", source, len(settings))
		for _, setting := range settings {
			if setting.SourcePath != "" && source != am.SourceDefault {
				fmt.Fprintf(out, "  %s = %s  (%s)\n", setting.Key, display.Value(setting.Value), shortenHome(setting.SourcePath, home))
				continue
			}
			fmt.Fprintf(out, "  %s = %s\n", setting.Key, display.Value(setting.Value))
		}
	}
	return nil
}

func shortenHome(path, home string) string {
	if home != "" && len(path) > len(home) && path[:len(home)] == home && path[len(home)] == os.PathSeparator {
		return "~" + path[len(home):]
	}
	return path
}
