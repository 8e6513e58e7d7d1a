// Package host simulates the extension-loading side of a SQLite host
// inside the process, on top of modernc.org/sqlite.
//
// It keeps the two pieces of process-wide state an extension can touch: the
// extension registry, where a load that returns SQLITE_OK_LOAD_PERMANENTLY
// marks the library permanent, and the VFS registry, which registrars fill
// through RegisterVFS. Loads are serialized the way sqlite3_load_extension
// serializes them.
package host

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
	"modernc.org/sqlite/vfs"

	"github.com/mesh-intelligence/donutloadable/internal/logging"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

const driverName = "sqlite"

// Extension is the host's record of a loaded library.
type Extension struct {
	Name string `json:"name"`

	// Permanent is set by the first load returning
	// SQLITE_OK_LOAD_PERMANENTLY and never cleared.
	Permanent bool `json:"permanent"`

	// Loads counts successful loads.
	Loads int `json:"loads"`

	// LastStatus is the status returned by the most recent load attempt.
	LastStatus types.StatusCode `json:"last_status"`
}

type registeredVFS struct {
	sqliteName string
	fs         *vfs.FS
}

// Host is an in-process stand-in for a SQLite host engine.
type Host struct {
	loadMu sync.Mutex // serializes LoadExtension

	mu         sync.Mutex
	db         *sql.DB
	routines   *Routines
	extensions map[string]*Extension
	vfs        map[string]*registeredVFS
	opened     []*sql.DB
	logger     *zap.Logger
	closed     bool
}

// Option configures a Host.
type Option func(*hostOptions)

type hostOptions struct {
	libVersion int
	logger     *zap.Logger
}

// WithLibVersion overrides the version the routine table reports. By
// default it is the version of the embedded SQLite library.
func WithLibVersion(v int) Option {
	return func(o *hostOptions) {
		o.libVersion = v
	}
}

// WithLogger sets the host logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *hostOptions) {
		o.logger = l
	}
}

// New opens an in-memory SQLite connection that stands for the database
// handle extensions are loaded through.
func New(ctx context.Context, opts ...Option) (*Host, error) {
	var o hostOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Logger()
	}

	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open host database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if o.libVersion == 0 {
		var version string
		if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
			db.Close()
			return nil, fmt.Errorf("query sqlite version: %w", err)
		}
		o.libVersion, err = ParseVersion(version)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	h := &Host{
		db:         db,
		extensions: make(map[string]*Extension),
		vfs:        make(map[string]*registeredVFS),
		logger:     o.logger.Named("host"),
	}
	h.routines = &Routines{version: o.libVersion}
	return h, nil
}

// Routines returns the routine table handed to extensions.
func (h *Host) Routines() *Routines {
	return h.routines
}

// LoadExtension calls entry the way sqlite3_load_extension calls an
// extension init function. A non-success status becomes an error wrapping
// types.ErrLoadFailed carrying the message the extension wrote.
func (h *Host) LoadExtension(name string, entry types.EntryPoint) error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("load %s: host is closed", name)
	}
	db := types.DBHandle(unsafe.Pointer(h.db))
	h.mu.Unlock()

	slot := &errMsgSlot{}
	status := entry(db, slot, h.routines)

	h.mu.Lock()
	defer h.mu.Unlock()

	ext, ok := h.extensions[name]
	if !ok {
		ext = &Extension{Name: name}
		h.extensions[name] = ext
	}
	ext.LastStatus = status

	log := h.logger.With(zap.String("extension", name), zap.Stringer("status", status))
	switch status {
	case types.StatusOKLoadPermanently:
		ext.Permanent = true
		ext.Loads++
		log.Info("extension loaded permanently")
		return nil
	case types.StatusOK:
		ext.Loads++
		log.Info("extension loaded")
		return nil
	default:
		msg := slot.msg
		if msg == "" {
			msg = status.String()
		}
		log.Warn("extension failed to load", zap.String("error", msg))
		return fmt.Errorf("%w: %s: error during initialization: %s", types.ErrLoadFailed, name, msg)
	}
}

// Extension returns a copy of the record for name.
func (h *Host) Extension(name string) (Extension, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ext, ok := h.extensions[name]
	if !ok {
		return Extension{}, false
	}
	return *ext, true
}

// Permanent reports whether name was loaded permanently.
func (h *Host) Permanent(name string) bool {
	ext, ok := h.Extension(name)
	return ok && ext.Permanent
}

// Extensions returns all extension records sorted by name.
func (h *Host) Extensions() []Extension {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Extension, 0, len(h.extensions))
	for _, ext := range h.extensions {
		out = append(out, *ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegisterVFS installs fsys as a read-only VFS under name.
func (h *Host) RegisterVFS(name string, fsys fs.FS) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("register vfs %s: host is closed", name)
	}
	if _, dup := h.vfs[name]; dup {
		return fmt.Errorf("%w: %s", types.ErrVFSAlreadyExists, name)
	}

	sqliteName, f, err := vfs.New(fsys)
	if err != nil {
		return fmt.Errorf("register vfs %s: %w", name, err)
	}
	h.vfs[name] = &registeredVFS{sqliteName: sqliteName, fs: f}
	h.logger.Debug("vfs registered", zap.String("vfs", name), zap.String("sqlite_name", sqliteName))
	return nil
}

// VFSNames returns the registered VFS names in sorted order.
func (h *Host) VFSNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.vfs))
	for name := range h.vfs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenVFS opens file read-only through the VFS registered as name. The
// returned database is closed by Close.
func (h *Host) OpenVFS(ctx context.Context, name, file string) (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.vfs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrVFSNotFound, name)
	}

	db, err := sql.Open(driverName, fmt.Sprintf("file:%s?vfs=%s&mode=ro", url.PathEscape(file), r.sqliteName))
	if err != nil {
		return nil, fmt.Errorf("open %s via vfs %s: %w", file, name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s via vfs %s: %w", file, name, err)
	}
	h.opened = append(h.opened, db)
	return db, nil
}

// Close closes every database and unregisters every VFS.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []string
	for _, db := range h.opened {
		if err := db.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	for name, r := range h.vfs {
		if err := r.fs.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("vfs %s: %v", name, err))
		}
	}
	if err := h.db.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close host: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseVersion converts "3.45.1" to 3045001.
func ParseVersion(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("parse sqlite version %q: want X.Y[.Z]", s)
	}
	n := 0
	scale := []int{1000000, 1000, 1}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || (i > 0 && v > 999) {
			return 0, fmt.Errorf("parse sqlite version %q: bad component %q", s, p)
		}
		n += v * scale[i]
	}
	return n, nil
}

type errMsgSlot struct {
	msg string
}

func (s *errMsgSlot) SetErrMsg(msg string) {
	s.msg = msg
}
