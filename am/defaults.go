package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Tools
	v.SetDefault("tools.python", "python3")
	v.SetDefault("tools.timeout_seconds", 0)

	// Discovery
	v.SetDefault("discovery.extensions", []string{".pyx"})
	v.SetDefault("discovery.include", []string{})
	v.SetDefault("discovery.exclude", []string{})

	// Build
	v.SetDefault("build.directives", map[string]any{})
	v.SetDefault("build.keep_build_dir", false)

	// Stubgen
	v.SetDefault("stubgen.include_docstrings", true)

	// Logging
	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")
}

// ToolTimeout returns the per-invocation tool timeout (0 = none)
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Tools.TimeoutSeconds) * time.Second
}

// GetLogTheme returns the log theme (default: everforest)
func (c *Config) GetLogTheme() string {
	if c.Log.Theme == "" {
		return "everforest"
	}
	return c.Log.Theme
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Tools: {Python: %s}, Discovery: {Extensions: %v}, Stubgen: {IncludeDocstrings: %t}}",
		c.Tools.Python, c.Discovery.Extensions, c.Stubgen.IncludeDocstrings)
}
