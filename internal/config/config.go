// Package config loads the loader configuration with Viper: package
// defaults, then config.yaml in the config directory, then DONUTDB_* env.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// EnvPrefix prefixes every environment override, e.g. DONUTDB_BACKEND.
	EnvPrefix = "DONUTDB"

	KeyBackend          = "backend"
	KeyMinSQLiteVersion = "min_sqlite_version"
	KeyLogLevel         = "log_level"
	KeyLogFile          = "log_file"
	KeyRegistrarLibrary = "registrar_library"
)

// defaultConfigYAML is written by WriteDefault. Keep it in sync with
// types.DefaultConfig.
const defaultConfigYAML = `# donutloadable configuration
# Every key can be overridden with a DONUTDB_<KEY> environment variable.

# Go registrar to run on load. Falls back to DonutDBRegister in the process.
backend: donutdb

# Lowest host SQLite version accepted by the handshake (3.14.0).
min_sqlite_version: 3014000

# debug, info, warn or error.
log_level: warn

# Path, "stderr", or empty to keep the extension silent.
# log_file: stderr

# Shared object providing DonutDBRegister, opened before the symbol lookup.
# registrar_library: /usr/local/lib/libdonutdb.so
`

// Path returns the config.yaml path inside configDir.
func Path(configDir string) string {
	return filepath.Join(configDir, configFileExt)
}

// Load reads the configuration. A missing config directory or config.yaml
// is not an error; defaults and env still apply. Load never writes.
func Load(configDir string) (types.Config, error) {
	v := newViper()
	if configDir != "" {
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return types.Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	defaults := types.DefaultConfig()

	v := viper.New()
	v.SetDefault(KeyBackend, defaults.Backend)
	v.SetDefault(KeyMinSQLiteVersion, defaults.MinSQLiteVersion)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)
	v.SetDefault(KeyLogFile, defaults.LogFile)
	v.SetDefault(KeyRegistrarLibrary, defaults.RegistrarLibrary)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// WriteDefault creates configDir and a default config.yaml if the file does
// not exist. It reports whether the file was created.
func WriteDefault(configDir string) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}

	path := Path(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg types.Config) ([]byte, error) {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
