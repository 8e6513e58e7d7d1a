package types

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds the loader settings read from config.yaml and DONUTDB_* env.
type Config struct {
	// Backend names the Go registrar to run. When no Go registrar has that
	// name the shared library falls back to DonutDBRegister in the process.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// MinSQLiteVersion is the lowest host version the handshake accepts,
	// in sqlite3_libversion_number form.
	MinSQLiteVersion int `json:"min_sqlite_version" yaml:"min_sqlite_version" mapstructure:"min_sqlite_version"`

	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// LogFile is a path, "stderr", or empty to disable logging.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty" mapstructure:"log_file"`

	// RegistrarLibrary is a shared object opened with global symbol
	// visibility before DonutDBRegister is looked up. Empty means the symbol
	// must already be in the process (host executable or LD_PRELOAD).
	RegistrarLibrary string `json:"registrar_library,omitempty" yaml:"registrar_library,omitempty" mapstructure:"registrar_library"`
}

// Defaults.
const (
	DefaultBackend = "donutdb"

	// DefaultMinSQLiteVersion is SQLite 3.14.0, the first release that
	// keeps an extension returning SQLITE_OK_LOAD_PERMANENTLY loaded.
	DefaultMinSQLiteVersion = 3014000

	DefaultLogLevel = "warn"
)

// Config validation errors.
var (
	ErrBackendEmpty      = errors.New("backend must not be empty")
	ErrMinVersionInvalid = errors.New("min_sqlite_version must be positive")
	ErrLogLevelUnknown   = errors.New("unknown log level")
	ErrVersionMismatch   = errors.New("routine table version mismatch")
	ErrNilRoutineTable   = errors.New("routine table is nil")
	ErrLoadFailed        = errors.New("extension failed to load")
	ErrRegistrarNotFound = errors.New("registrar not found")
	ErrVFSAlreadyExists  = errors.New("vfs already registered")
	ErrVFSNotFound       = errors.New("vfs not registered")
)

var knownLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		Backend:          DefaultBackend,
		MinSQLiteVersion: DefaultMinSQLiteVersion,
		LogLevel:         DefaultLogLevel,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if c.MinSQLiteVersion <= 0 {
		return ErrMinVersionInvalid
	}
	if !knownLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("%w: %q", ErrLogLevelUnknown, c.LogLevel)
	}
	return nil
}

// FormatVersion renders a sqlite3_libversion_number value as X.Y.Z.
func FormatVersion(n int) string {
	return fmt.Sprintf("%d.%d.%d", n/1000000, (n/1000)%1000, n%1000)
}
