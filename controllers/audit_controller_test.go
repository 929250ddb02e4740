package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"legacyaudit/audit"
	"legacyaudit/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLookup struct{ found bool }

func (f fakeLookup) MemberHasMembership(context.Context, int64, int64) (bool, error) {
	return f.found, nil
}

func newTestStore(t *testing.T, opts ...audit.Option) *audit.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:controllers_%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
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

	return audit.NewStore(db, audit.NewRegistry(), opts...)
}

func newTestRouter(ac *AuditController) *gin.Engine {
	r := gin.New()
	r.GET("/api/audits", ac.ListAudits)
	r.POST("/api/audits", ac.CreateAudit)
	r.GET("/api/audits/types", ac.ListAuditedClasses)
	r.POST("/api/audits/types", ac.AddAuditedClass)
	r.GET("/api/audits/:id", ac.GetAudit)
	r.GET("/api/audits/:id/ancestors", ac.GetAncestors)
	r.GET("/api/admin/audits/disabled", ac.GetAuditingDisabled)
	r.PUT("/api/admin/audits/disabled", ac.SetAuditingDisabled)
	r.GET("/api/admin/audits/foreign-keys", ac.GetForeignKeys)
	r.PUT("/api/admin/audits/foreign-keys", ac.SetForeignKeys)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createInvoiceAudit(t *testing.T, r http.Handler, action string) database.Audit {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/audits", AuditRequest{
		AuditableType:     "Invoice",
		AuditableID:       42,
		Action:            action,
		Changes:           map[string]any{"status": "paid"},
		QuintessEditorUID: int64Ptr(3),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[database.Audit](t, w)
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateAudit(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))

	a := createInvoiceAudit(t, r, "Update")
	assert.NotZero(t, a.AuditUID)
	assert.Equal(t, database.ActionUpdate, a.Action)
	assert.Equal(t, database.AuditTypeUpdate, a.AuditTypeUcode)
	assert.Equal(t, 0, a.Version)
	assert.Equal(t, int64Ptr(3), a.QuintessEditorUID)
	assert.Nil(t, a.MemberEditorUID)
}

func TestCreateAudit_BadRequest(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))

	tcs := []struct {
		name string
		body any
	}{
		{name: "missing type", body: map[string]any{"auditable_id": 1, "action": "create"}},
		{name: "blank type", body: map[string]any{"auditable_type": "  ", "auditable_id": 1, "action": "create"}},
		{name: "negative id", body: map[string]any{"auditable_type": "Invoice", "auditable_id": -1, "action": "create"}},
		{name: "missing action", body: map[string]any{"auditable_type": "Invoice", "auditable_id": 1}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/audits", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateAudit_Suppressed(t *testing.T) {
	store := newTestStore(t)
	r := newTestRouter(NewAuditController(store))

	w := do(t, r, http.MethodPut, "/api/admin/audits/disabled", map[string]any{"disabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.Registry().Disabled())

	w = do(t, r, http.MethodPost, "/api/audits", AuditRequest{AuditableType: "Invoice", AuditableID: 42, Action: "create"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"suppressed":true}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/audits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]database.Audit](t, w))

	w = do(t, r, http.MethodGet, "/api/admin/audits/disabled", nil)
	assert.JSONEq(t, `{"disabled":true}`, w.Body.String())
}

func TestSetAuditingDisabled_RequiresFlag(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))

	w := do(t, r, http.MethodPut, "/api/admin/audits/disabled", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAudit(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))
	created := createInvoiceAudit(t, r, "create")

	w := do(t, r, http.MethodGet, fmt.Sprintf("/api/audits/%d", created.AuditUID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[database.Audit](t, w)
	assert.Equal(t, created.AuditUID, got.AuditUID)
	assert.Equal(t, "paid", got.AuditedChanges()["status"])

	w = do(t, r, http.MethodGet, "/api/audits/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/audits/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAncestors(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))
	first := createInvoiceAudit(t, r, "create")
	second := createInvoiceAudit(t, r, "update")
	third := createInvoiceAudit(t, r, "update")

	w := do(t, r, http.MethodGet, fmt.Sprintf("/api/audits/%d/ancestors", first.AuditUID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]database.Audit](t, w)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{first.AuditUID, second.AuditUID, third.AuditUID},
		[]int64{got[0].AuditUID, got[1].AuditUID, got[2].AuditUID})

	w = do(t, r, http.MethodGet, "/api/audits/999/ancestors", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAudits(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))
	create := createInvoiceAudit(t, r, "create")
	update := createInvoiceAudit(t, r, "update")

	w := do(t, r, http.MethodGet, "/api/audits?action=update", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]database.Audit](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, update.AuditUID, got[0].AuditUID)

	w = do(t, r, http.MethodGet, "/api/audits?auditable_type=Invoice&auditable_id=42&order=desc&to_version=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[[]database.Audit](t, w)
	require.Len(t, got, 2)
	assert.Equal(t, update.AuditUID, got[0].AuditUID)
	assert.Equal(t, create.AuditUID, got[1].AuditUID)

	w = do(t, r, http.MethodGet, "/api/audits?auditable_type=Invoice&auditable_id=42&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]database.Audit](t, w), 1)

	w = do(t, r, http.MethodGet, "/api/audits?from_version=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]database.Audit](t, w))

	w = do(t, r, http.MethodGet, "/api/audits?up_until=2000-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]database.Audit](t, w))
}

func TestListAudits_BadQuery(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))

	for _, query := range []string{
		"auditable_type=Invoice",
		"auditable_id=4",
		"auditable_type=Invoice&auditable_id=0",
		"up_until=yesterday",
		"from_version=x",
		"to_version=1.5",
		"limit=-1",
	} {
		t.Run(query, func(t *testing.T) {
			w := do(t, r, http.MethodGet, "/api/audits?"+query, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListAudits_VersionErrorsInParameterOrder(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))

	for i := 0; i < 20; i++ {
		w := do(t, r, http.MethodGet, "/api/audits?to_version=y&from_version=x", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"from_version must be an integer"}`, w.Body.String())
	}
}

func TestAuditedClasses(t *testing.T) {
	r := newTestRouter(NewAuditController(newTestStore(t)))
	createInvoiceAudit(t, r, "create")

	w := do(t, r, http.MethodGet, "/api/audits/types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"types":["Invoice"]}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/audits/types", map[string]any{"name": "Member"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"name":"Member","added":true}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/audits/types", map[string]any{"name": "Invoice"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"Invoice","added":false}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/audits/types", map[string]any{"name": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/audits/types", nil)
	assert.JSONEq(t, `{"types":["Invoice","Member"]}`, w.Body.String())
}

func TestForeignKeys(t *testing.T) {
	store := newTestStore(t, audit.WithMembershipLookup(fakeLookup{found: false}))
	r := newTestRouter(NewAuditController(store))

	w := do(t, r, http.MethodGet, "/api/admin/audits/foreign-keys", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"keys":{},"checked":false,"consistent":false,"mismatch":false}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/admin/audits/foreign-keys", map[string]any{
		"keys": map[string]int64{"member_uid": 3, "membership_uid": 8},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"keys":{"member_uid":3,"membership_uid":8},"checked":true,"consistent":false,"mismatch":true}`, w.Body.String())

	a := createInvoiceAudit(t, r, "create")
	assert.Equal(t, int64Ptr(8), a.MembershipUID)
}
