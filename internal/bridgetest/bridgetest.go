// Package bridgetest provides instrumented stand-ins for the bridge
// collaborators. Every stand-in appends to a shared Journal so tests can
// assert on call order across collaborators.
package bridgetest

import (
	"sync"

	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// Event names recorded in a Journal.
const (
	EventNegotiate = "negotiate"
	EventBind      = "bind"
	EventRegister  = "register"
	EventErrMsg    = "errmsg"
)

// Journal records collaborator calls in order.
type Journal struct {
	mu     sync.Mutex
	events []string
}

func (j *Journal) record(event string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.events = append(j.events, event)
	j.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (j *Journal) Events() []string {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

// Count returns how often event was recorded.
func (j *Journal) Count(event string) int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, e := range j.events {
		if e == event {
			n++
		}
	}
	return n
}

// Handshake is a stub handshake returning Status. A Status of StatusOK
// binds the table (when it is non-nil) and succeeds.
type Handshake struct {
	Status  types.StatusCode
	Msg     string
	Version int
	Journal *Journal
}

// Negotiate implements types.Handshake.
func (h *Handshake) Negotiate(table types.RoutineTable) (types.Bound, error) {
	h.Journal.record(EventNegotiate)
	if h.Status != types.StatusOK {
		return types.Bound{}, &types.HandshakeError{Status: h.Status, Msg: h.Msg}
	}
	if table != nil {
		if err := table.Bind(); err != nil {
			return types.Bound{}, &types.HandshakeError{Status: types.StatusError, Err: err}
		}
	}
	return types.Bound{Version: h.Version}, nil
}

// Registrar counts invocations.
type Registrar struct {
	Journal *Journal

	// OnRegister runs inside Register when set.
	OnRegister func()

	mu    sync.Mutex
	calls int
}

// Register implements types.Registrar.
func (r *Registrar) Register() {
	r.Journal.record(EventRegister)
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.OnRegister != nil {
		r.OnRegister()
	}
}

// Calls returns the number of Register invocations.
func (r *Registrar) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Table is a routine table with a fixed version.
type Table struct {
	Version int
	BindErr error
	Journal *Journal

	mu    sync.Mutex
	bound bool
}

// LibVersionNumber implements types.RoutineTable.
func (t *Table) LibVersionNumber() int {
	return t.Version
}

// Bind implements types.RoutineTable.
func (t *Table) Bind() error {
	t.Journal.record(EventBind)
	if t.BindErr != nil {
		return t.BindErr
	}
	t.mu.Lock()
	t.bound = true
	t.mu.Unlock()
	return nil
}

// Bound reports whether Bind succeeded.
func (t *Table) Bound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bound
}

// ErrMsg captures the message written by the bridge.
type ErrMsg struct {
	Journal *Journal

	mu      sync.Mutex
	msg     string
	written bool
}

// SetErrMsg implements types.ErrMsgSlot.
func (e *ErrMsg) SetErrMsg(msg string) {
	e.Journal.record(EventErrMsg)
	e.mu.Lock()
	e.msg = msg
	e.written = true
	e.mu.Unlock()
}

// Msg returns the last written message and whether anything was written.
func (e *ErrMsg) Msg() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.msg, e.written
}
