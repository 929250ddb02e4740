package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"legacyaudit/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:audit_%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func ref(t *testing.T, typeName string, id int64) database.AuditableRef {
	t.Helper()
	r, err := database.NewAuditableRef(typeName, id)
	require.NoError(t, err)
	return r
}

func int64Ptr(v int64) *int64 { return &v }

type lookupCall struct {
	member, membership int64
}

type fakeLookup struct {
	found bool
	err   error
	calls []lookupCall
}

func (f *fakeLookup) MemberHasMembership(_ context.Context, memberUID, membershipUID int64) (bool, error) {
	f.calls = append(f.calls, lookupCall{memberUID, membershipUID})
	return f.found, f.err
}
