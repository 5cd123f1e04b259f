//go:build !postgres

package main

import (
	"github.com/iGentAI/ferrous/pkg/config"
	"github.com/iGentAI/ferrous/pkg/storage"
)

// newEngine builds the in-process reference storage engine. Build with
// -tags postgres to link storage_postgres.go's pgx-backed engine
// instead.
func newEngine(_ *config.Config) (storage.Engine, error) {
	return storage.NewMemory(), nil
}
