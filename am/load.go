package am

import (
	"os"
	"path/filepath"
	"strings"

	burntsushi "github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/teranos/cystub/errors"
)

var (
	globalConfig  *Config
	viperInstance *viper.Viper

	// ConfigSources records which file set each key during the last load
	ConfigSources = make(map[string]SourceInfo)

	configFiles []ConfigFile
)

// ConfigFile is one file of the configuration cascade
type ConfigFile struct {
	Source ConfigSource `json:"source" yaml:"source"`
	Path   string       `json:"path" yaml:"path"`
	Exists bool         `json:"exists" yaml:"exists"`
}

// Load reads the cystub configuration, searching for project files from
// the working directory. The result is cached until Reset.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get working directory")
	}
	return LoadFrom(dir)
}

// LoadFrom reads the configuration as seen from dir and caches it.
func LoadFrom(dir string) (*Config, error) {
	Reset()

	v, err := initViper(dir)
	if err != nil {
		return nil, err
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	viperInstance = v
	globalConfig = config
	return globalConfig, nil
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	config.Build.Directives = flattenDirectives(config.Build.Directives, "")
	return &config, nil
}

// flattenDirectives restores dotted directive names ("warn.unused") that
// viper splits into nested maps.
func flattenDirectives(directives map[string]any, prefix string) map[string]any {
	flat := make(map[string]any, len(directives))
	for name, value := range directives {
		if prefix != "" {
			name = prefix + "." + name
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenDirectives(nested, name) {
				flat[k] = v
			}
			continue
		}
		flat[name] = value
	}
	return flat
}

// GetViper returns the Viper instance of the last load, loading if needed
func GetViper() *viper.Viper {
	if viperInstance == nil {
		if _, err := Load(); err != nil {
			v := viper.New()
			SetDefaults(v)
			return v
		}
	}
	return viperInstance
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// ConfigFiles returns the files checked by the last load, lowest precedence first
func ConfigFiles() []ConfigFile {
	return configFiles
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	ConfigSources = make(map[string]SourceInfo)
	configFiles = nil
}

// initViper initializes Viper with defaults, files and environment
func initViper(dir string) (*viper.Viper, error) {
	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Manually merge configs in precedence order: system -> user -> pyproject -> project -> env vars
	if err := mergeConfigFiles(v, dir); err != nil {
		return nil, err
	}
	return v, nil
}

// findUp searches for name in dir and its parents.
// Returns the path of the first match, or empty string if none found
func findUp(dir, name string) string {
	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges configuration files in the correct precedence order
// Precedence (lowest to highest): system < user < pyproject < project < env vars
func mergeConfigFiles(v *viper.Viper, dir string) error {
	files := []ConfigFile{{Source: SourceSystem, Path: SystemConfigPath}}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, ConfigFile{
			Source: SourceUser,
			Path:   filepath.Join(home, UserConfigDir, UserConfigName),
		})
	}
	files = append(files,
		ConfigFile{Source: SourcePyproject, Path: findUp(dir, PyprojectName)},
		ConfigFile{Source: SourceProject, Path: findUp(dir, ProjectConfigName)},
	)

	for i := range files {
		file := &files[i]
		if file.Path == "" {
			continue
		}
		if _, err := os.Stat(file.Path); err != nil {
			continue
		}
		file.Exists = true

		settings, err := readSettings(*file)
		if err != nil {
			return err
		}
		markSettingsFromSource(settings, "", file.Source, file.Path, ConfigSources)
		if err := applySettings(v, settings, file.Path); err != nil {
			return err
		}
	}

	configFiles = files
	return nil
}

// readSettings decodes one configuration file into a nested map
func readSettings(file ConfigFile) (map[string]interface{}, error) {
	if file.Source == SourcePyproject {
		var doc struct {
			Tool struct {
				Cystub map[string]interface{} `toml:"cystub"`
			} `toml:"tool"`
		}
		if _, err := burntsushi.DecodeFile(file.Path, &doc); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", file.Path)
		}
		return doc.Tool.Cystub, nil
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", file.Path)
	}
	var settings map[string]interface{}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", file.Path)
	}
	return settings, nil
}

// applySettings deep-merges settings into the config layer so a file only
// overrides the keys it names and environment variables still win
func applySettings(v *viper.Viper, settings map[string]interface{}, path string) error {
	if err := v.MergeConfigMap(settings); err != nil {
		return errors.Wrapf(err, "failed to merge config file %s", path)
	}
	return nil
}

// markSettingsFromSource records source for every leaf key in settings
func markSettingsFromSource(settings map[string]interface{}, prefix string, source ConfigSource, path string, sourceMap map[string]SourceInfo) {
	for key, value := range settings {
		fullKey := joinKey(prefix, key)
		if nested, ok := value.(map[string]interface{}); ok {
			markSettingsFromSource(nested, fullKey, source, path, sourceMap)
			continue
		}
		sourceMap[fullKey] = SourceInfo{Source: source, Path: path}
	}
}

func joinKey(prefix, key string) string {
	key = strings.ToLower(key)
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
