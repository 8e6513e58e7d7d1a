// Package loader assembles the bridge from configuration: it reads the
// config once per process, installs the configured logger, and picks the
// registrar the bridge will invoke.
package loader

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/donutloadable/internal/bridge"
	"github.com/mesh-intelligence/donutloadable/internal/config"
	"github.com/mesh-intelligence/donutloadable/internal/logging"
	"github.com/mesh-intelligence/donutloadable/internal/paths"
	"github.com/mesh-intelligence/donutloadable/internal/registrar"
	"github.com/mesh-intelligence/donutloadable/internal/routines"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// Loader holds the process-wide settings the bridge is built from.
type Loader struct {
	cfg    types.Config
	err    error
	logger *zap.Logger
}

// New loads configuration from configDir ("" resolves the default
// directory) and builds the logger. A configuration error is kept and
// reported through the handshake of every bridge built by the Loader.
func New(configDir string) *Loader {
	l := &Loader{cfg: types.DefaultConfig(), logger: zap.NewNop()}

	dir, err := paths.ResolveConfigDir(configDir)
	if err != nil {
		l.err = fmt.Errorf("resolve config dir: %w", err)
		return l
	}
	cfg, err := config.Load(dir)
	if err != nil {
		l.err = err
		return l
	}
	l.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		l.err = err
		return l
	}
	l.logger = logger
	return l
}

// FromConfig returns a Loader for an already resolved configuration.
func FromConfig(cfg types.Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, err: cfg.Validate(), logger: logger}
}

var (
	defaultOnce   sync.Once
	defaultLoader *Loader
)

// Default returns the process-wide Loader, created on first use. It also
// installs the Loader's logger as the package logger.
func Default() *Loader {
	defaultOnce.Do(func() {
		defaultLoader = New("")
		logging.SetLogger(defaultLoader.logger)
	})
	return defaultLoader
}

// Config returns the loaded configuration.
func (l *Loader) Config() types.Config {
	return l.cfg
}

// Err returns the configuration error, if any.
func (l *Loader) Err() error {
	return l.err
}

// Logger returns the configured logger.
func (l *Loader) Logger() *zap.Logger {
	return l.logger
}

// Bridge builds a bridge. fallback runs when no Go registrar is registered
// under the configured backend name.
func (l *Loader) Bridge(fallback types.Registrar) *bridge.Bridge {
	return bridge.New(l.handshake(), l.registrar(fallback), bridge.WithLogger(l.logger))
}

func (l *Loader) handshake() types.Handshake {
	if l.err != nil {
		err := l.err
		return types.HandshakeFunc(func(types.RoutineTable) (types.Bound, error) {
			return types.Bound{}, &types.HandshakeError{
				Status: types.StatusError,
				Msg:    fmt.Sprintf("donutloadable configuration: %v", err),
				Err:    err,
			}
		})
	}
	return routines.New(l.cfg.MinSQLiteVersion)
}

// registrar resolves the backend when Register runs, so the bridge itself
// never sees the backend name.
func (l *Loader) registrar(fallback types.Registrar) types.Registrar {
	backend := l.cfg.Backend
	log := l.logger
	return registrar.Func(func() {
		r, err := registrar.Lookup(backend)
		if err != nil {
			if fallback == nil {
				registrar.Fatal(backend, func() error { return err }).Register()
				return
			}
			log.Debug("no go registrar, using linked registrar", zap.String("backend", backend))
			fallback.Register()
			return
		}
		log.Debug("running go registrar", zap.String("backend", backend))
		r.Register()
	})
}
