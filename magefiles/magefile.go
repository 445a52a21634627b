//go:build mage

// Package main contains Mage build targets for md2word.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "md2word"
)

// Build compiles the md2word binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, "."); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Vet runs go vet over every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the unit tests with the race detector.
func Test() error {
	mg.Deps(Vet)
	return sh.RunV("go", "test", "-race", "./...")
}

// Serve builds and starts the HTTP API with the mock provider.
func Serve() error {
	mg.Deps(Build)
	env := map[string]string{"MD2WORD_LLM_PROVIDER": "mock"}
	return sh.RunWithV(env, filepath.Join(binDir, binName), "serve", "-v")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}
