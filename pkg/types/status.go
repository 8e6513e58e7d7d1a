package types

import (
	"errors"
	"fmt"
)

// StatusCode is a SQLite result code as returned by an extension entry point.
type StatusCode int32

// Result codes used at the extension boundary. Values match sqlite3.h.
const (
	StatusOK                StatusCode = 0
	StatusError             StatusCode = 1
	StatusMisuse            StatusCode = 21
	StatusOKLoadPermanently StatusCode = 256
)

var statusNames = map[StatusCode]string{
	StatusOK:                "SQLITE_OK",
	StatusError:             "SQLITE_ERROR",
	StatusMisuse:            "SQLITE_MISUSE",
	StatusOKLoadPermanently: "SQLITE_OK_LOAD_PERMANENTLY",
}

// KnownStatuses lists the result codes in ascending order.
var KnownStatuses = []StatusCode{
	StatusOK,
	StatusError,
	StatusMisuse,
	StatusOKLoadPermanently,
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SQLITE_STATUS(%d)", int32(s))
}

// Succeeded reports whether the host treats s as a successful load.
// SQLite accepts both SQLITE_OK and SQLITE_OK_LOAD_PERMANENTLY.
func (s StatusCode) Succeeded() bool {
	return s == StatusOK || s == StatusOKLoadPermanently
}

// HandshakeError is returned by a Handshake that could not bind the
// routine table. Status is propagated to the host unchanged.
type HandshakeError struct {
	Status StatusCode
	Msg    string
	Err    error
}

func (e *HandshakeError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("handshake failed: %s", e.Status)
	}
	return fmt.Sprintf("handshake failed (%s): %s", e.Status, msg)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// StatusOf maps an error to the status code returned to the host. A nil
// error is StatusOK; a *HandshakeError carries its own status; anything
// else is StatusError.
func StatusOf(err error) StatusCode {
	if err == nil {
		return StatusOK
	}
	var he *HandshakeError
	if errors.As(err, &he) {
		if he.Status == StatusOK || he.Status == StatusOKLoadPermanently {
			// A failing handshake must never be reported as a success.
			return StatusError
		}
		return he.Status
	}
	return StatusError
}
