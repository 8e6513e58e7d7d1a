package bridge

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/donutloadable/internal/bridgetest"
	"github.com/mesh-intelligence/donutloadable/internal/routines"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

func fakeDB() types.DBHandle {
	conn := new(int)
	return types.DBHandle(unsafe.Pointer(conn))
}

func TestLoadPermanentOnHandshakeOK(t *testing.T) {
	journal := &bridgetest.Journal{}
	reg := &bridgetest.Registrar{Journal: journal}
	slot := &bridgetest.ErrMsg{Journal: journal}
	b := New(&bridgetest.Handshake{Status: types.StatusOK, Journal: journal}, reg)

	got := b.Load(fakeDB(), slot, &bridgetest.Table{Version: 3045000})

	assert.Equal(t, types.StatusOKLoadPermanently, got)
	assert.NotEqual(t, types.StatusOK, got)
	assert.Equal(t, 1, reg.Calls())
	_, written := slot.Msg()
	assert.False(t, written, "success path must leave the error slot untouched")
}

func TestLoadVersionMismatchShortCircuits(t *testing.T) {
	const mismatch = types.StatusCode(26)

	reg := &bridgetest.Registrar{}
	slot := &bridgetest.ErrMsg{}
	b := New(&bridgetest.Handshake{Status: mismatch, Msg: "version mismatch"}, reg)

	got := b.Load(fakeDB(), slot, &bridgetest.Table{Version: 3045000})

	assert.Equal(t, mismatch, got)
	assert.Equal(t, 0, reg.Calls())
	msg, written := slot.Msg()
	assert.True(t, written)
	assert.Contains(t, msg, "version mismatch")
}

func TestHandshakeRunsBeforeRegistrar(t *testing.T) {
	journal := &bridgetest.Journal{}
	table := &bridgetest.Table{Version: 3045000, Journal: journal}
	var boundAtRegister bool
	reg := &bridgetest.Registrar{
		Journal:    journal,
		OnRegister: func() { boundAtRegister = table.Bound() },
	}
	b := New(&bridgetest.Handshake{Status: types.StatusOK, Journal: journal}, reg)

	require.Equal(t, types.StatusOKLoadPermanently, b.Load(fakeDB(), nil, table))

	assert.Equal(t, []string{
		bridgetest.EventNegotiate,
		bridgetest.EventBind,
		bridgetest.EventRegister,
	}, journal.Events())
	assert.True(t, boundAtRegister, "registrar ran before the routine table was bound")
}

func TestRegistrarAtMostOncePerLoad(t *testing.T) {
	statuses := []types.StatusCode{
		types.StatusOK,
		types.StatusError,
		types.StatusMisuse,
		types.StatusCode(26),
	}

	for _, status := range statuses {
		t.Run(status.String(), func(t *testing.T) {
			reg := &bridgetest.Registrar{}
			b := New(&bridgetest.Handshake{Status: status}, reg)
			b.Load(fakeDB(), nil, &bridgetest.Table{Version: 3045000})
			assert.LessOrEqual(t, reg.Calls(), 1)
			if status == types.StatusOK {
				assert.Equal(t, 1, reg.Calls())
			} else {
				assert.Equal(t, 0, reg.Calls())
			}
		})
	}
}

func TestLoadsAreIndependent(t *testing.T) {
	reg := &bridgetest.Registrar{}
	hs := &bridgetest.Handshake{Status: types.StatusOK}
	b := New(hs, reg)

	assert.Equal(t, types.StatusOKLoadPermanently, b.Load(fakeDB(), nil, &bridgetest.Table{Version: 3045000}))
	assert.Equal(t, 1, reg.Calls())

	hs.Status = types.StatusError
	assert.Equal(t, types.StatusError, b.Load(fakeDB(), nil, &bridgetest.Table{Version: 3045000}))
	assert.Equal(t, 1, reg.Calls(), "failed load must not invoke the registrar")

	hs.Status = types.StatusOK
	assert.Equal(t, types.StatusOKLoadPermanently, b.Load(fakeDB(), nil, &bridgetest.Table{Version: 3045000}))
	assert.Equal(t, 2, reg.Calls(), "each successful load invokes the registrar once")

	// A fresh bridge behaves exactly like the reused one.
	fresh := &bridgetest.Registrar{}
	assert.Equal(t, types.StatusOKLoadPermanently,
		New(&bridgetest.Handshake{Status: types.StatusOK}, fresh).Load(fakeDB(), nil, &bridgetest.Table{Version: 3045000}))
	assert.Equal(t, 1, fresh.Calls())
}

func TestRunReportsTerminalState(t *testing.T) {
	reg := &bridgetest.Registrar{}

	ok := New(&bridgetest.Handshake{Status: types.StatusOK}, reg).
		Run(fakeDB(), nil, &bridgetest.Table{Version: 3045000})
	assert.Equal(t, types.StateDone, ok.State)
	assert.Empty(t, ok.Msg)

	failed := New(&bridgetest.Handshake{Status: types.StatusMisuse, Msg: "no api"}, reg).
		Run(fakeDB(), nil, nil)
	assert.Equal(t, types.StateHandshakeFailed, failed.State)
	assert.Equal(t, types.StatusMisuse, failed.Status)
	assert.Contains(t, failed.Msg, "no api")
}

func TestWithNegotiator(t *testing.T) {
	t.Run("old host returns the negotiator status without registering", func(t *testing.T) {
		reg := &bridgetest.Registrar{}
		table := &bridgetest.Table{Version: 3008000}
		slot := &bridgetest.ErrMsg{}

		got := New(routines.New(types.DefaultMinSQLiteVersion), reg).Load(fakeDB(), slot, table)

		assert.Equal(t, types.StatusError, got)
		assert.Equal(t, 0, reg.Calls())
		assert.False(t, table.Bound())
		msg, _ := slot.Msg()
		assert.Contains(t, msg, "requires SQLite 3.14.0 or later")
	})

	t.Run("nil table returns misuse", func(t *testing.T) {
		reg := &bridgetest.Registrar{}
		got := New(routines.New(types.DefaultMinSQLiteVersion), reg).Load(fakeDB(), nil, nil)
		assert.Equal(t, types.StatusMisuse, got)
		assert.Equal(t, 0, reg.Calls())
	})

	t.Run("bind failure short-circuits", func(t *testing.T) {
		reg := &bridgetest.Registrar{}
		table := &bridgetest.Table{Version: 3045000, BindErr: errors.New("stale table")}
		got := New(routines.New(types.DefaultMinSQLiteVersion), reg).Load(fakeDB(), nil, table)
		assert.Equal(t, types.StatusError, got)
		assert.Equal(t, 0, reg.Calls())
	})
}

func TestLoadLogsTransitions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := New(&bridgetest.Handshake{Status: types.StatusOK}, &bridgetest.Registrar{}, WithLogger(zap.New(core)))

	b.Load(fakeDB(), nil, &bridgetest.Table{Version: 3045000})

	transitions := logs.FilterMessage("load state").All()
	require.Len(t, transitions, 4)
	assert.Equal(t, "handshake_completing", transitions[0].ContextMap()["to"])
	assert.Equal(t, "done", transitions[3].ContextMap()["to"])

	done := logs.FilterMessage("vfs registered, extension loaded permanently").All()
	require.Len(t, done, 1)
	assert.NotEmpty(t, done[0].ContextMap()["load_id"])
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	assert.Panics(t, func() { New(nil, &bridgetest.Registrar{}) })
	assert.Panics(t, func() { New(&bridgetest.Handshake{}, nil) })
}
