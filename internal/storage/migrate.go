package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var sessionSchema embed.FS

// RunMigrations brings the session schema at dbPath up to date and returns
// the resulting version. It opens its own connection because closing the
// migrate driver closes the underlying *sql.DB.
func RunMigrations(dbPath string) (uint, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(sessionSchema, "migrations")
	if err != nil {
		driver.Close()
		return 0, fmt.Errorf("read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		src.Close()
		driver.Close()
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	// A dirty schema means an earlier run died half way; refuse to guess.
	if v, dirty, err := m.Version(); err == nil && dirty {
		return v, fmt.Errorf("session schema is dirty at version %d", v)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	slog.Info("Session schema ready", "path", dbPath, "version", version)
	return version, nil
}
