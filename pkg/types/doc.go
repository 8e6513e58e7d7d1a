// Package types defines the status codes, the entry-point contract and the
// collaborator interfaces shared by the extension bridge, the host simulator
// and the cgo shared library.
//
// The bridge sits between two boundaries: the host engine calls the entry
// point with a database handle, an error-message slot and a routine table;
// the bridge calls a zero-argument Registrar. Everything the bridge needs to
// know about either side is expressed by the interfaces in this package.
package types
