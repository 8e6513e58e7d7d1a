//go:build cgo && (linux || darwin)

package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libraryFixture holds the artifacts built once per test run: the extension,
// a C registrar library and a C host that calls sqlite3_load_extension.
type libraryFixture struct {
	extension string
	registrar string
	host      string
}

func buildFixture(t *testing.T) libraryFixture {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the shared library")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go not on PATH")
	}
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	if _, err := exec.LookPath(cc); err != nil {
		t.Skipf("%s not on PATH", cc)
	}

	dir := t.TempDir()
	fx := libraryFixture{
		extension: filepath.Join(dir, "libdonutloadable"+sharedSuffix()),
		registrar: filepath.Join(dir, "libregistrar"+sharedSuffix()),
		host:      filepath.Join(dir, "host"),
	}

	out, err := exec.Command(cc, "-o", fx.host, filepath.Join("testdata", "host.c"), "-lsqlite3").CombinedOutput()
	if err != nil {
		t.Skipf("cannot build sqlite host (libsqlite3 headers missing?): %v\n%s", err, out)
	}
	out, err = exec.Command(cc, "-shared", "-fPIC", "-o", fx.registrar, filepath.Join("testdata", "registrar.c")).CombinedOutput()
	require.NoError(t, err, "build registrar: %s", out)

	build := exec.Command(goBin, "build", "-buildmode=c-shared", "-o", fx.extension, ".")
	build.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err = build.CombinedOutput()
	require.NoError(t, err, "build extension: %s", out)
	return fx
}

func sharedSuffix() string {
	if runtime.GOOS == "darwin" {
		return ".dylib"
	}
	return ".so"
}

type hostRun struct {
	stdout   string
	stderr   string
	exitCode int
}

// load runs the host against the extension with env added to a clean
// DONUTDB_* environment.
func (fx libraryFixture) load(t *testing.T, env ...string) hostRun {
	t.Helper()
	cmd := exec.Command(fx.host, fx.extension)
	cmd.Env = append(os.Environ(),
		"DONUTDB_CONFIG_DIR="+t.TempDir(),
		"DONUTDB_BACKEND=",
		"DONUTDB_MIN_SQLITE_VERSION=",
		"DONUTDB_LOG_LEVEL=",
		"DONUTDB_LOG_FILE=",
		"DONUTDB_REGISTRAR_LIBRARY=",
	)
	cmd.Env = append(cmd.Env, env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	run := hostRun{}
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		run.exitCode = exitErr.ExitCode()
	case err != nil:
		t.Fatalf("run host: %v", err)
	}
	run.stdout = stdout.String()
	run.stderr = stderr.String()
	return run
}

func registered(t *testing.T, marker string) bool {
	t.Helper()
	data, err := os.ReadFile(marker)
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return string(data) == "registered\n"
}

func TestLibraryLoad(t *testing.T) {
	fx := buildFixture(t)

	t.Run("registrar library is opened and called", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "marker")
		run := fx.load(t,
			"DONUTDB_REGISTRAR_LIBRARY="+fx.registrar,
			"DONUTDB_REGISTRAR_MARKER="+marker,
		)

		assert.Equal(t, 0, run.exitCode, run.stderr)
		assert.Equal(t, "rc=0 err=\n", run.stdout)
		assert.True(t, registered(t, marker), "DonutDBRegister must run exactly once")
	})

	t.Run("preloaded registrar is found in the process", func(t *testing.T) {
		if runtime.GOOS != "linux" {
			t.Skip("LD_PRELOAD is linux only")
		}
		marker := filepath.Join(t.TempDir(), "marker")
		run := fx.load(t,
			"LD_PRELOAD="+fx.registrar,
			"DONUTDB_REGISTRAR_MARKER="+marker,
		)

		assert.Equal(t, 0, run.exitCode, run.stderr)
		assert.Equal(t, "rc=0 err=\n", run.stdout)
		assert.True(t, registered(t, marker))
	})

	t.Run("version floor fails the load before the registrar", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "marker")
		run := fx.load(t,
			"DONUTDB_MIN_SQLITE_VERSION=99000000",
			"DONUTDB_REGISTRAR_LIBRARY="+fx.registrar,
			"DONUTDB_REGISTRAR_MARKER="+marker,
		)

		assert.Equal(t, 0, run.exitCode, run.stderr)
		assert.Contains(t, run.stdout, "rc=1 ")
		assert.Contains(t, run.stdout, "requires SQLite 99.0.0 or later")
		assert.False(t, registered(t, marker))
	})

	t.Run("missing registrar terminates the host", func(t *testing.T) {
		run := fx.load(t)

		assert.Equal(t, 1, run.exitCode)
		assert.Contains(t, run.stderr, "DonutDBRegister not found")
	})
}
