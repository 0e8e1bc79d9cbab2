package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/marsgrid/ticksync/internal/config"
	"github.com/marsgrid/ticksync/internal/database"
	"github.com/marsgrid/ticksync/internal/storage"
	"github.com/marsgrid/ticksync/internal/storage/memory"
	sqlstore "github.com/marsgrid/ticksync/internal/storage/sql"
)

// createStorageBackend returns a nil backend for storage type "none". The
// closer, when not nil, releases the database after the backend is closed.
func createStorageBackend(cfg config.StorageConfig, zl zerolog.Logger, start time.Time) (storage.Backend, io.Closer, error) {
	switch cfg.Type {
	case "none":
		return nil, nil, nil

	case "postgres", "sqlite":
		db := database.NewManager(zl.With().Str("component", "database").Logger())
		if err := db.Connect(cfg.Type == "postgres", cfg.SQLite.Path); err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		dumpPath := cfg.SQLite.DumpPath
		if db.InMemory && dumpPath == "" {
			dumpPath = filepath.Join(cfg.Memory.OutputDir, fmt.Sprintf("%s_%s.db", AppName, start.Format("20060102_150405")))
		}
		return sqlstore.New(sqlstore.Dependencies{
			Manager:  db,
			Logger:   zl.With().Str("component", "recorder").Logger(),
			DumpPath: dumpPath,
		}), db, nil

	case "memory", "":
		return memory.New(cfg.Memory), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
