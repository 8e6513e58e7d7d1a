package host

import "sync"

// Routines is the simulated routine table. Bind stands in for
// SQLITE_EXTENSION_INIT2.
type Routines struct {
	version int

	mu    sync.Mutex
	binds int
}

// LibVersionNumber implements types.RoutineTable.
func (r *Routines) LibVersionNumber() int {
	return r.version
}

// Bind implements types.RoutineTable.
func (r *Routines) Bind() error {
	r.mu.Lock()
	r.binds++
	r.mu.Unlock()
	return nil
}

// Binds returns how many times the table was bound.
func (r *Routines) Binds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.binds
}
