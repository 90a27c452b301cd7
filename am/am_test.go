package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config location at fresh temp directories and
// returns the project directory to load from.
func isolate(t *testing.T) (project, home string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)

	previous := SystemConfigPath
	SystemConfigPath = filepath.Join(t.TempDir(), "am.toml")
	t.Cleanup(func() {
		SystemConfigPath = previous
		Reset()
	})
	return project, home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Tools.Python)
	assert.Equal(t, 0, cfg.Tools.TimeoutSeconds)
	assert.Equal(t, []string{".pyx"}, cfg.Discovery.Extensions)
	assert.Empty(t, cfg.Discovery.Include)
	assert.True(t, cfg.Stubgen.IncludeDocstrings)
	assert.False(t, cfg.Build.KeepBuildDir)
	assert.Equal(t, "everforest", cfg.GetLogTheme())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_Precedence(t *testing.T) {
	project, home := isolate(t)

	writeFile(t, SystemConfigPath, `
[tools]
python = "/usr/bin/python3"
timeout_seconds = 600
`)
	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigName), `
[tools]
python = "python3.12"

[build.directives]
boundscheck = false
`)
	writeFile(t, filepath.Join(project, PyprojectName), `
[project]
name = "fastlib"

[tool.cystub.discovery]
exclude = ["tests/**"]

[tool.cystub.build.directives]
"warn.unused" = true
`)
	writeFile(t, filepath.Join(project, ProjectConfigName), `
[tools]
python = "uv run python"

[stubgen]
include_docstrings = false
`)

	nested := filepath.Join(project, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := LoadFrom(nested)
	require.NoError(t, err)

	assert.Equal(t, "uv run python", cfg.Tools.Python, "project overrides user and system")
	assert.Equal(t, 600, cfg.Tools.TimeoutSeconds, "system value survives when not overridden")
	assert.Equal(t, []string{"tests/**"}, cfg.Discovery.Exclude)
	assert.False(t, cfg.Stubgen.IncludeDocstrings)
	assert.Equal(t, false, cfg.Build.Directives["boundscheck"])
	assert.Equal(t, true, cfg.Build.Directives["warn.unused"])

	assert.Equal(t, SourceProject, ConfigSources["tools.python"].Source)
	assert.Equal(t, SourceSystem, ConfigSources["tools.timeout_seconds"].Source)
	assert.Equal(t, SourcePyproject, ConfigSources["discovery.exclude"].Source)

	files := ConfigFiles()
	require.Len(t, files, 4)
	for _, f := range files {
		assert.True(t, f.Exists, f.Path)
	}
}

func TestLoadFrom_Environment(t *testing.T) {
	project, _ := isolate(t)
	writeFile(t, filepath.Join(project, ProjectConfigName), "[tools]\npython = \"python3.11\"\n")
	t.Setenv("CYSTUB_TOOLS_PYTHON", "pypy3")
	t.Setenv("CYSTUB_LOG_JSON", "true")

	cfg, err := LoadFrom(project)
	require.NoError(t, err)
	assert.Equal(t, "pypy3", cfg.Tools.Python)
	assert.True(t, cfg.Log.JSON)

	intro, err := GetConfigIntrospection()
	require.NoError(t, err)
	var found bool
	for _, s := range intro.Settings {
		if s.Key == "tools.python" {
			found = true
			assert.Equal(t, SourceEnvironment, s.Source)
			assert.Equal(t, "CYSTUB_TOOLS_PYTHON", s.SourcePath)
		}
	}
	assert.True(t, found)
}

func TestLoadFrom_NoFiles(t *testing.T) {
	project, _ := isolate(t)

	cfg, err := LoadFrom(project)
	require.NoError(t, err)
	assert.Equal(t, "python3", cfg.Tools.Python)

	for _, f := range ConfigFiles() {
		assert.False(t, f.Exists, f.Path)
	}

	intro, err := GetConfigIntrospection()
	require.NoError(t, err)
	for _, s := range intro.Settings {
		assert.Equal(t, SourceDefault, s.Source, s.Key)
	}
}

func TestLoadFrom_MalformedFile(t *testing.T) {
	project, _ := isolate(t)
	writeFile(t, filepath.Join(project, ProjectConfigName), "[tools\npython = \n")

	_, err := LoadFrom(project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ProjectConfigName)
}

func TestMarkSettingsFromSource(t *testing.T) {
	settings := map[string]interface{}{
		"tools": map[string]interface{}{
			"python":          "python3",
			"timeout_seconds": 30,
		},
		"build": map[string]interface{}{
			"keep_build_dir": true,
		},
	}

	sourceMap := make(map[string]SourceInfo)
	markSettingsFromSource(settings, "", SourceUser, "/home/user/.cystub/am.toml", sourceMap)

	assert.Len(t, sourceMap, 3)
	assert.Equal(t, SourceUser, sourceMap["tools.python"].Source)
	assert.Equal(t, "/home/user/.cystub/am.toml", sourceMap["build.keep_build_dir"].Path)
}

func TestFlattenDirectives(t *testing.T) {
	flat := flattenDirectives(map[string]any{
		"boundscheck": false,
		"warn":        map[string]any{"unused": true, "undeclared": false},
	}, "")

	assert.Equal(t, map[string]any{
		"boundscheck":     false,
		"warn.unused":     true,
		"warn.undeclared": false,
	}, flat)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Tools:     ToolsConfig{Python: "python3"},
			Discovery: DiscoveryConfig{Extensions: []string{".pyx"}},
		}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", modify: func(*Config) {}},
		{name: "zero timeout is valid (no limit)", modify: func(c *Config) { c.Tools.TimeoutSeconds = 0 }},
		{name: "negative timeout", modify: func(c *Config) { c.Tools.TimeoutSeconds = -1 }, wantErr: true},
		{name: "empty python", modify: func(c *Config) { c.Tools.Python = "  " }, wantErr: true},
		{name: "no extensions", modify: func(c *Config) { c.Discovery.Extensions = nil }, wantErr: true},
		{name: "extension without dot", modify: func(c *Config) { c.Discovery.Extensions = []string{"pyx"} }, wantErr: true},
		{name: "stub extension", modify: func(c *Config) { c.Discovery.Extensions = []string{".pyi"} }, wantErr: true},
		{name: "bad include glob", modify: func(c *Config) { c.Discovery.Include = []string{"[oops"} }, wantErr: true},
		{name: "bad exclude glob", modify: func(c *Config) { c.Discovery.Exclude = []string{"{a,b"} }, wantErr: true},
		{name: "unknown theme", modify: func(c *Config) { c.Log.Theme = "solarized" }, wantErr: true},
		{name: "gruvbox theme", modify: func(c *Config) { c.Log.Theme = "gruvbox" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
