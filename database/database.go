package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"legacyaudit/config"
)

var DB *gorm.DB

// InitDB opens the gorm connection described by the application config
func InitDB() error {
	db, err := Open(config.AppConfig)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects gorm to the configured driver. The legacy schema owns its
// constraints, so gorm never creates foreign keys for the association tags.
func Open(cfg config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	switch cfg.DBDriver {
	case "postgres":
		log.WithFields(log.Fields{
			"host": cfg.DBHost,
			"port": cfg.DBPort,
			"db":   cfg.DBName,
		}).Info("Connecting to PostgreSQL")

		db, err := gorm.Open(postgres.Open(postgresDSN(cfg)), gormConfig)
		if err != nil {
			log.WithError(err).Error("Failed to connect to PostgreSQL")
			return nil, err
		}
		log.Info("PostgreSQL connection successful")
		return db, nil

	case "sqlite", "sqlite3":
		db, err := gorm.Open(sqlite.Open(cfg.DBPath), gormConfig)
		if err != nil {
			log.WithError(err).WithField("path", cfg.DBPath).Error("Failed to open SQLite")
			return nil, err
		}
		log.WithField("path", cfg.DBPath).Info("SQLite connection successful")
		return db, nil
	}

	return nil, fmt.Errorf("unsupported DB driver: %s", cfg.DBDriver)
}

func postgresDSN(cfg config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
