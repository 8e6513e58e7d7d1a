package types

import "unsafe"

// DBHandle identifies the connection through which an extension is loaded.
// It is owned by the host and is never dereferenced by the bridge.
type DBHandle unsafe.Pointer

// RoutineTable is the host's versioned callable surface, handed to the
// extension at load time. It is valid for the duration of the load call and,
// once the load succeeds, for the rest of the process.
type RoutineTable interface {
	// LibVersionNumber reports the host library version, e.g. 3045001.
	LibVersionNumber() int

	// Bind installs the table as the extension's callable surface. No host
	// routine may be called before Bind returns nil.
	Bind() error
}

// Bound is the result of a successful negotiation.
type Bound struct {
	Version int
}

// Handshake completes the host's initialization handshake for one load.
// A failure must be reported as an error; StatusOf derives the status code.
type Handshake interface {
	Negotiate(table RoutineTable) (Bound, error)
}

// HandshakeFunc adapts a function to the Handshake interface.
type HandshakeFunc func(table RoutineTable) (Bound, error)

// Negotiate calls f(table).
func (f HandshakeFunc) Negotiate(table RoutineTable) (Bound, error) {
	return f(table)
}

// Registrar installs the VFS with the host. It takes no arguments and
// reports nothing: a registrar that cannot succeed must terminate the
// process instead of returning.
type Registrar interface {
	Register()
}

// ErrMsgSlot is the host's error-message output slot. The bridge writes to
// it only when a load fails.
type ErrMsgSlot interface {
	SetErrMsg(msg string)
}

// EntryPoint is the host-mandated signature of an extension init function.
type EntryPoint func(db DBHandle, errMsg ErrMsgSlot, table RoutineTable) StatusCode

// LoadState is a state of the per-load state machine.
type LoadState int

// Load states, in the order a successful load visits them.
const (
	StateInvoked LoadState = iota
	StateHandshakeCompleting
	StateHandshakeFailed
	StateHandshakeOK
	StateRegistrarInvoked
	StateDone
)

var loadStateNames = [...]string{
	StateInvoked:             "invoked",
	StateHandshakeCompleting: "handshake_completing",
	StateHandshakeFailed:     "handshake_failed",
	StateHandshakeOK:         "handshake_ok",
	StateRegistrarInvoked:    "registrar_invoked",
	StateDone:                "done",
}

func (s LoadState) String() string {
	if s >= 0 && int(s) < len(loadStateNames) {
		return loadStateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no transition leaves s.
func (s LoadState) Terminal() bool {
	return s == StateHandshakeFailed || s == StateDone
}

// Outcome is the result of one load attempt. It is produced once and never
// retained by the bridge.
type Outcome struct {
	Status StatusCode `json:"status"`
	Msg    string     `json:"message,omitempty"`
	State  LoadState  `json:"-"`
}

// StateName is State rendered for JSON and text output.
func (o Outcome) StateName() string {
	return o.State.String()
}
