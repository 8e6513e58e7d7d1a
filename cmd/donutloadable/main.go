// Command donutloadable is a SQLite loadable extension that installs the
// DonutDB VFS for the lifetime of the process.
//
// Build it as a shared library:
//
//	go build -buildmode=c-shared -o libdonutloadable.so ./cmd/donutloadable
//
// and load it from any SQLite host:
//
//	.load ./libdonutloadable
//
// The VFS itself is installed by a registrar: a Go registrar compiled in
// under the configured backend name, or else the C function DonutDBRegister.
// The library does not link DonutDBRegister; it looks the symbol up in the
// process when the registrar runs. Provide it in one of three ways:
//
//   - set registrar_library (DONUTDB_REGISTRAR_LIBRARY) to a shared object
//     defining it; the library is opened with RTLD_GLOBAL before the lookup
//   - link it into the host executable and export it (-rdynamic)
//   - preload a library defining it (LD_PRELOAD)
//
// A missing symbol is a registrar failure: it is logged and the process
// exits with status 1.
package main

/*
#cgo linux LDFLAGS: -ldl
#include <stdlib.h>
#include <sqlite3ext.h>

int donut_api_version(const sqlite3_api_routines *pApi);
void donut_api_bind(const sqlite3_api_routines *pApi);
void donut_set_errmsg(const sqlite3_api_routines *pApi, char **pzErrMsg, const char *msg);
int donut_call_register(const char *library, char **err);
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/mesh-intelligence/donutloadable/internal/loader"
	"github.com/mesh-intelligence/donutloadable/internal/registrar"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// apiTable is the host's sqlite3_api_routines.
type apiTable struct {
	api *C.sqlite3_api_routines
}

func (t apiTable) LibVersionNumber() int {
	return int(C.donut_api_version(t.api))
}

// Bind runs SQLITE_EXTENSION_INIT2.
func (t apiTable) Bind() error {
	if t.api == nil {
		return errors.New("sqlite3_api_routines is nil")
	}
	C.donut_api_bind(t.api)
	return nil
}

// errMsgSlot writes into *pzErrMsg with the host's allocator, so the host
// can release the message with sqlite3_free.
type errMsgSlot struct {
	api      *C.sqlite3_api_routines
	pzErrMsg **C.char
}

func (s errMsgSlot) SetErrMsg(msg string) {
	cmsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cmsg))
	C.donut_set_errmsg(s.api, s.pzErrMsg, cmsg)
}

// linkedRegistrar looks up DonutDBRegister, opening library first when it
// is set, and calls it.
func linkedRegistrar(library string) types.Registrar {
	return registrar.Fatal("DonutDBRegister", func() error {
		var clib *C.char
		if library != "" {
			clib = C.CString(library)
			defer C.free(unsafe.Pointer(clib))
		}
		var cerr *C.char
		if C.donut_call_register(clib, &cerr) != 0 {
			msg := C.GoString(cerr)
			C.free(unsafe.Pointer(cerr))
			if library != "" {
				return fmt.Errorf("registrar library %s: %s", library, msg)
			}
			return errors.New(msg)
		}
		return nil
	})
}

//export donutBridgeLoad
func donutBridgeLoad(db *C.sqlite3, pzErrMsg **C.char, pApi *C.sqlite3_api_routines) C.int {
	var table types.RoutineTable
	if pApi != nil {
		table = apiTable{api: pApi}
	}
	var slot types.ErrMsgSlot
	if pzErrMsg != nil {
		slot = errMsgSlot{api: pApi, pzErrMsg: pzErrMsg}
	}

	l := loader.Default()
	b := l.Bridge(linkedRegistrar(l.Config().RegistrarLibrary))
	return C.int(b.Load(types.DBHandle(unsafe.Pointer(db)), slot, table))
}

func main() {}
