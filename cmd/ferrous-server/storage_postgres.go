//go:build postgres

package main

import (
	"context"

	"github.com/iGentAI/ferrous/pkg/config"
	"github.com/iGentAI/ferrous/pkg/storage"
)

// newEngine builds the pgx/v5-backed storage engine. Linked in only
// when built with -tags postgres; storage_memory.go provides the
// default in-process engine otherwise.
func newEngine(cfg *config.Config) (storage.Engine, error) {
	return storage.NewPostgres(context.Background(), storage.Config{
		Host:     cfg.PGHost,
		Port:     cfg.PGPort,
		User:     cfg.PGUser,
		Password: cfg.PGPassword,
		Database: cfg.PGDatabase,
		SSLMode:  cfg.PGSSLMode,
	})
}
