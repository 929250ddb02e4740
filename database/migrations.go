package database

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunMigrations creates the legacy tables when they are missing. Production
// databases already carry this schema; this exists for local SQLite setups.
func RunMigrations(db *gorm.DB) error {
	log.Info("Running database migrations...")

	if err := db.AutoMigrate(
		&Membership{},
		&QuintessUser{},
		&Member{},
		&MembershipContract{},
		&MemberMembership{},
		&Audit{},
	); err != nil {
		log.WithError(err).Error("Migration failed")
		return err
	}

	log.Info("Database migrations completed successfully")
	return nil
}
