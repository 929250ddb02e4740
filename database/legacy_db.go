package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"legacyaudit/config"
)

// LegacyDB is the raw SQL connection used for lookups against legacy tables
// that have no gorm model of their own.
var LegacyDB *sql.DB

// InitLegacyDB initializes the legacy database connection for raw SQL operations
func InitLegacyDB() error {
	db, err := OpenLegacy(config.AppConfig)
	if err != nil {
		return err
	}
	LegacyDB = db
	return nil
}

// OpenLegacy opens and pings a database/sql handle for the configured driver.
func OpenLegacy(cfg config.Config) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.DBDriver {
	case "postgres":
		db, err = sql.Open("postgres", postgresDSN(cfg))
		if err != nil {
			log.WithError(err).Error("Failed to open PostgreSQL legacy database")
			return nil, err
		}

	case "sqlite", "sqlite3":
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				log.WithError(err).WithField("dir", dir).Error("Failed to create directory for SQLite database")
				return nil, err
			}
		}
		db, err = sql.Open("sqlite3", cfg.DBPath)
		if err != nil {
			log.WithError(err).Error("Failed to open SQLite legacy database")
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}

	if err := db.Ping(); err != nil {
		log.WithError(err).Error("Failed to ping legacy database")
		_ = db.Close()
		return nil, err
	}

	log.WithField("driver", cfg.DBDriver).Info("Legacy database connection established")
	return db, nil
}

// CloseLegacyDB closes the legacy database connection
func CloseLegacyDB() error {
	if LegacyDB != nil {
		return LegacyDB.Close()
	}
	return nil
}
