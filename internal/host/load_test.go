package host

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/donutloadable/internal/bridge"
	"github.com/mesh-intelligence/donutloadable/internal/registrar"
	"github.com/mesh-intelligence/donutloadable/internal/routines"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// TestBridgeLoad loads the bridge into the host, lets the registrar install a
// VFS, and reads a database through it.
func TestBridgeLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seedDatabase(t, dir, "donut.db")

	h := newHost(t)
	calls := 0
	reg := registrar.Func(func() {
		calls++
		if err := h.RegisterVFS("donutdb", os.DirFS(dir)); err != nil {
			t.Errorf("register vfs: %v", err)
		}
	})
	b := bridge.New(routines.New(types.DefaultMinSQLiteVersion), reg)

	require.NoError(t, h.LoadExtension("donutloadable", b.Load))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, h.Routines().Binds())
	assert.True(t, h.Permanent("donutloadable"))
	assert.Equal(t, []string{"donutdb"}, h.VFSNames())

	db, err := h.OpenVFS(ctx, "donutdb", "donut.db")
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM sectors`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestBridgeLoad_OldHost(t *testing.T) {
	h := newHost(t, WithLibVersion(3008000))
	calls := 0
	b := bridge.New(routines.New(types.DefaultMinSQLiteVersion), registrar.Func(func() { calls++ }))

	err := h.LoadExtension("donutloadable", b.Load)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrLoadFailed)
	assert.Contains(t, err.Error(), "requires SQLite 3.14.0 or later, host is 3.8.0")
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, h.Routines().Binds())
	assert.False(t, h.Permanent("donutloadable"))
	assert.Empty(t, h.VFSNames())
}
