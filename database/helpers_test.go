package database

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, RunMigrations(db))
	return db
}

// seedAudit inserts a without running hooks so tests control version and code.
func seedAudit(t *testing.T, db *gorm.DB, a Audit) Audit {
	t.Helper()
	require.NoError(t, db.Session(&gorm.Session{SkipHooks: true}).Create(&a).Error)
	return a
}

func at(hour int) time.Time {
	return time.Date(2024, time.March, 1, hour, 0, 0, 0, time.UTC)
}

func int64Ptr(v int64) *int64 { return &v }

type fakeHooks struct {
	disabled     bool
	member       *int64
	quintessUser *int64
}

func (f fakeHooks) Disabled() bool                             { return f.disabled }
func (f fakeHooks) CurrentMember(context.Context) *int64       { return f.member }
func (f fakeHooks) CurrentQuintessUser(context.Context) *int64 { return f.quintessUser }
