// Package postgres implements the storage.Backend interface on PostgreSQL.
// It owns the connection pool and delegates queries to the GORM backend.
package postgres

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/internal/database"
	gormstorage "github.com/ironwatch/site/internal/storage/gorm"
)

// Backend is a GORM backend with its own Postgres connection.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	log zerolog.Logger
}

// New connects to Postgres and checks the connection.
func New(cfg config.PostgresConfig, siteName string, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to database")

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:       db,
			Logger:   log,
			SiteName: siteName,
		}),
		db:  db,
		log: log,
	}, nil
}

// Close flushes pending records and closes the pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		b.log.Error().Err(err).Msg("Final flush failed")
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
