// Package am loads the cystub configuration ("I am").
//
// Settings are merged from, lowest precedence first: built-in defaults,
// the system file (/etc/cystub/am.toml), the user file (~/.cystub/am.toml),
// the [tool.cystub] table of the nearest pyproject.toml, the nearest
// cystub.toml, and CYSTUB_* environment variables.
package am

// Config represents the cystub configuration
type Config struct {
	Tools     ToolsConfig     `mapstructure:"tools" toml:"tools" json:"tools" yaml:"tools"`
	Discovery DiscoveryConfig `mapstructure:"discovery" toml:"discovery" json:"discovery" yaml:"discovery"`
	Build     BuildConfig     `mapstructure:"build" toml:"build" json:"build" yaml:"build"`
	Stubgen   StubgenConfig   `mapstructure:"stubgen" toml:"stubgen" json:"stubgen" yaml:"stubgen"`
	Log       LogConfig       `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// ToolsConfig selects the interpreter that runs Cython and stubgen
type ToolsConfig struct {
	Python         string `mapstructure:"python" toml:"python" json:"python" yaml:"python"`                                  // e.g. "python3", "uv run python"
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"` // per tool invocation, 0 = no limit
}

// DiscoveryConfig controls which sources take part in a run
type DiscoveryConfig struct {
	Extensions []string `mapstructure:"extensions" toml:"extensions" json:"extensions" yaml:"extensions"`
	Include    []string `mapstructure:"include" toml:"include" json:"include" yaml:"include"` // doublestar globs relative to the root
	Exclude    []string `mapstructure:"exclude" toml:"exclude" json:"exclude" yaml:"exclude"`
}

// BuildConfig configures the Cython build
type BuildConfig struct {
	Directives   map[string]any `mapstructure:"directives" toml:"directives" json:"directives" yaml:"directives"` // merged over the version-dependent defaults
	KeepBuildDir bool           `mapstructure:"keep_build_dir" toml:"keep_build_dir" json:"keep_build_dir" yaml:"keep_build_dir"`
}

// StubgenConfig configures mypy stubgen
type StubgenConfig struct {
	IncludeDocstrings bool `mapstructure:"include_docstrings" toml:"include_docstrings" json:"include_docstrings" yaml:"include_docstrings"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
	Theme string `mapstructure:"theme" toml:"theme" json:"theme" yaml:"theme"` // gruvbox, everforest
}

// Configuration file names and locations
const (
	ProjectConfigName = "cystub.toml"
	UserConfigName    = "am.toml"
	UserConfigDir     = ".cystub"
	PyprojectName     = "pyproject.toml"
	EnvPrefix         = "CYSTUB"
)

// SystemConfigPath is the system-wide configuration file
var SystemConfigPath = "/etc/cystub/am.toml"
