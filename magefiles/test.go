//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, library).
type Test mg.Namespace

// All runs every test, including packages that need cgo and sqlite3ext.h.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs the tests that build without cgo.
func (Test) Unit() error {
	pkgs, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return err
	}
	var unitPkgs []string
	for pkg := range strings.SplitSeq(pkgs, "\n") {
		if pkg != "" && !strings.HasSuffix(pkg, "/cmd/donutloadable") {
			unitPkgs = append(unitPkgs, pkg)
		}
	}
	if len(unitPkgs) == 0 {
		fmt.Println("No unit test packages found.")
		return nil
	}
	args := append([]string{"test", "-v"}, unitPkgs...)
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "0"}, binGo, args...)
}

// Library builds the shared library and loads it into a C SQLite host.
// Needs cgo, a C compiler and the libsqlite3 headers.
func (Test) Library() error {
	env := map[string]string{"CGO_ENABLED": "1"}
	return sh.RunWithV(env, binGo, "test", "-v", "-run", "TestLibraryLoad", libraryDir)
}
