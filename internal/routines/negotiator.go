// Package routines negotiates the host routine table before any host
// routine is called.
package routines

import (
	"fmt"

	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// Negotiator checks the routine table version and binds it.
type Negotiator struct {
	// MinVersion is the lowest accepted sqlite3_libversion_number.
	// Zero means types.DefaultMinSQLiteVersion.
	MinVersion int
}

// New returns a Negotiator accepting hosts at or above minVersion.
func New(minVersion int) Negotiator {
	return Negotiator{MinVersion: minVersion}
}

// Negotiate validates table and binds it. Every failure is a
// *types.HandshakeError; the table is never bound after a failed check.
func (n Negotiator) Negotiate(table types.RoutineTable) (types.Bound, error) {
	if table == nil {
		return types.Bound{}, &types.HandshakeError{
			Status: types.StatusMisuse,
			Err:    types.ErrNilRoutineTable,
		}
	}

	minVersion := n.MinVersion
	if minVersion <= 0 {
		minVersion = types.DefaultMinSQLiteVersion
	}

	version := table.LibVersionNumber()
	if version < minVersion {
		return types.Bound{}, &types.HandshakeError{
			Status: types.StatusError,
			Msg: fmt.Sprintf("donutloadable requires SQLite %s or later, host is %s",
				types.FormatVersion(minVersion), types.FormatVersion(version)),
			Err: types.ErrVersionMismatch,
		}
	}

	if err := table.Bind(); err != nil {
		return types.Bound{}, &types.HandshakeError{
			Status: types.StatusError,
			Msg:    fmt.Sprintf("bind routine table: %v", err),
			Err:    err,
		}
	}

	return types.Bound{Version: version}, nil
}
