// Package registrar adapts VFS registration routines to the zero-argument,
// no-result contract the bridge calls.
//
// A registrar has no way to report failure to the bridge. Go registrars
// that can fail are wrapped with Fatal, which terminates the process on
// error. Named registrars are kept in a process-wide registry populated from
// init functions, the way database/sql drivers register themselves.
package registrar

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/donutloadable/internal/logging"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// Func adapts a function to types.Registrar.
type Func func()

// Register calls f().
func (f Func) Register() {
	f()
}

// exit terminates the process. Swapped in tests.
var exit = os.Exit

// Fatal wraps a fallible registration routine. An error is logged and the
// process exits with status 1; Register never returns after a failure.
func Fatal(name string, fn func() error) types.Registrar {
	return Func(func() {
		log := logging.Logger().With(zap.String("registrar", name))
		if err := fn(); err != nil {
			log.Error("vfs registration failed, terminating", zap.Error(err))
			_ = log.Sync()
			fmt.Fprintf(os.Stderr, "donutloadable: register vfs %q: %v\n", name, err)
			exit(1)
			return
		}
		log.Debug("vfs registration complete")
	})
}

var (
	mu         sync.RWMutex
	registrars = make(map[string]func() error)
)

// Register makes a registration routine available under name. It panics if
// name is empty, fn is nil, or name is already taken.
func Register(name string, fn func() error) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" {
		panic("registrar: Register name is empty")
	}
	if fn == nil {
		panic("registrar: Register fn is nil")
	}
	if _, dup := registrars[name]; dup {
		panic("registrar: Register called twice for " + name)
	}
	registrars[name] = fn
}

// Lookup returns the registrar registered under name, wrapped with Fatal.
func Lookup(name string) (types.Registrar, error) {
	mu.RLock()
	fn, ok := registrars[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrRegistrarNotFound, name)
	}
	return Fatal(name, fn), nil
}

// Names returns the registered names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registrars))
	for name := range registrars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unregisterAll() {
	mu.Lock()
	registrars = make(map[string]func() error)
	mu.Unlock()
}
