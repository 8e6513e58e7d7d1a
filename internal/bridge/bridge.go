// Package bridge implements the extension entry point: it completes the
// host handshake, invokes the VFS registrar once, and tells the host to keep
// the extension loaded for the rest of the process.
//
// A load walks the states
//
//	invoked -> handshake_completing -> handshake_failed
//	                                -> handshake_ok -> registrar_invoked -> done
//
// The registrar only runs after a successful handshake, at most once per
// call. A Bridge keeps no state between calls.
package bridge

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/donutloadable/internal/logging"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// Bridge connects a host handshake to a registrar.
type Bridge struct {
	handshake types.Handshake
	registrar types.Registrar
	logger    *zap.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The default is logging.Logger().
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New returns a Bridge. Both collaborators are required.
func New(h types.Handshake, r types.Registrar, opts ...Option) *Bridge {
	if h == nil || r == nil {
		panic("bridge: handshake and registrar must not be nil")
	}
	b := &Bridge{
		handshake: h,
		registrar: r,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.Logger()
	}
	return b
}

// Load is the extension entry point. It matches types.EntryPoint.
func (b *Bridge) Load(db types.DBHandle, errMsg types.ErrMsgSlot, table types.RoutineTable) types.StatusCode {
	return b.Run(db, errMsg, table).Status
}

// Run performs one load and reports the full outcome.
func (b *Bridge) Run(db types.DBHandle, errMsg types.ErrMsgSlot, table types.RoutineTable) types.Outcome {
	log := b.logger.With(
		zap.String("load_id", uuid.NewString()),
		zap.Bool("db_handle", db != nil),
	)

	state := types.StateInvoked
	enter := func(next types.LoadState) {
		log.Debug("load state", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}

	enter(types.StateHandshakeCompleting)
	bound, err := b.handshake.Negotiate(table)
	if err != nil {
		enter(types.StateHandshakeFailed)
		status := types.StatusOf(err)
		msg := err.Error()
		if errMsg != nil {
			errMsg.SetErrMsg(msg)
		}
		log.Warn("extension handshake failed", zap.Stringer("status", status), zap.Error(err))
		return types.Outcome{Status: status, Msg: msg, State: state}
	}
	enter(types.StateHandshakeOK)
	log.Debug("routine table bound", zap.String("sqlite_version", types.FormatVersion(bound.Version)))

	enter(types.StateRegistrarInvoked)
	b.registrar.Register()

	enter(types.StateDone)
	log.Info("vfs registered, extension loaded permanently")
	return types.Outcome{Status: types.StatusOKLoadPermanently, State: state}
}
