//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for donutloadable using Mage.
//
// Usage:
//
//	mage build          Compile the donutctl binary to bin/
//	mage library        Compile the SQLite extension (c-shared) to bin/
//	mage test:all       Run all tests, including the cgo extension package
//	mage test:unit      Run tests that do not need cgo or sqlite3ext.h
//	mage test:library   Load the built extension into a C SQLite host
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install donutctl to GOPATH/bin
package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "donutctl"
	binaryDir  = "bin"
	cmdDir     = "./cmd/donutctl"

	libraryBase = "libdonutloadable"
	libraryDir  = "./cmd/donutloadable"
)

// Build compiles the donutctl binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Library compiles the loadable extension to bin/. The file name's stem
// gives SQLite the entry point sqlite3_donutloadable_init.
func Library() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(binaryDir, libraryBase+librarySuffix())
	env := map[string]string{"CGO_ENABLED": "1"}
	return sh.RunWithV(env, binGo, "build", "-v", "-buildmode=c-shared", "-o", out, libraryDir)
}

func librarySuffix() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
