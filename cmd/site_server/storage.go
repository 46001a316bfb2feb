package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ironwatch/site/internal/cms"
	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/internal/storage"
	cmsstorage "github.com/ironwatch/site/internal/storage/cms"
	"github.com/ironwatch/site/internal/storage/memory"
	pgstorage "github.com/ironwatch/site/internal/storage/postgres"
	sqlitestorage "github.com/ironwatch/site/internal/storage/sqlite"
)

const siteName = "ironwatch"

// initStorage creates and initializes the configured request store.
func (a *app) initStorage(client *cms.Client) (storage.Backend, error) {
	cfg := config.GetStorageConfig()
	backend, err := createStorageBackend(cfg, client, a.zlog, a.sqliteDumpPath(cfg))
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		a.logger.Error("Failed to initialize storage backend", "error", err)
		_ = backend.Close()
		return nil, err
	}
	a.logger.Info("Storage backend initialized", "type", cfg.Type)
	return backend, nil
}

func (a *app) sqliteDumpPath(cfg config.StorageConfig) string {
	if cfg.SQLite.Path != "" {
		return cfg.SQLite.Path
	}
	return filepath.Join(cfg.Memory.OutputDir,
		fmt.Sprintf("%s_%s.db", serviceName, a.start.Format("20060102_150405")))
}

func createStorageBackend(cfg config.StorageConfig, client *cms.Client, log zerolog.Logger, dumpPath string) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		backend, err := pgstorage.New(cfg.Postgres, siteName, log)
		if err == nil {
			return backend, nil
		}
		// Requests are kept locally until Postgres is back.
		log.Error().Err(err).Msg("Failed to connect to Postgres, falling back to SQLite")
		return newSQLite(cfg, log, dumpPath)

	case "sqlite":
		return newSQLite(cfg, log, dumpPath)

	case "cms":
		if client == nil {
			return nil, fmt.Errorf("cms storage needs a CMS client")
		}
		return cmsstorage.New(client), nil

	case "", "memory":
		return memory.New(cfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func newSQLite(cfg config.StorageConfig, log zerolog.Logger, dumpPath string) (storage.Backend, error) {
	backend, err := sqlitestorage.New(sqlitestorage.Config{
		DumpInterval: cfg.SQLite.DumpInterval,
		DumpPath:     dumpPath,
		SiteName:     siteName,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
	}
	return backend, nil
}
