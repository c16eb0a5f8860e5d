package main

import (
	"fmt"
	"log/slog"

	"github.com/geomemo/geomemo/internal/config"
	"github.com/geomemo/geomemo/internal/storage"
	"github.com/geomemo/geomemo/internal/storage/memory"
	sqlitestorage "github.com/geomemo/geomemo/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

func createStorageBackend(storageCfg config.StorageConfig, dbLog zerolog.Logger, logger *slog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "sqlite", "":
		logger.Debug("SQLite storage backend selected", "path", storageCfg.SQLite.Path)
		return sqlitestorage.New(sqlitestorage.Config{
			Path:         storageCfg.SQLite.Path,
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     storageCfg.SQLite.DumpPath,
		}, dbLog, logger), nil

	case "memory":
		logger.Debug("Memory storage backend selected", "snapshot", storageCfg.Memory.SnapshotPath)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
