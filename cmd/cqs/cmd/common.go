package cmd

import (
	"context"
	"os"

	"github.com/cqs-dev/cqs/internal/config"
	"github.com/cqs-dev/cqs/internal/engine"
)

// resolveRoot returns the --root override if set, otherwise the nearest
// ancestor directory containing project markers, falling back to the
// working directory.
func resolveRoot() string {
	if rootPath != "" {
		return rootPath
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	found, err := config.FindProjectRoot(wd)
	if err != nil {
		return wd
	}
	return found
}

// openEngine opens the engine for resolveRoot(), read-only unless
// writable is requested (only the index command needs a writer).
func openEngine(ctx context.Context, writable bool) (*engine.Engine, error) {
	return engine.Open(ctx, resolveRoot(), engine.Options{ReadOnly: !writable})
}
