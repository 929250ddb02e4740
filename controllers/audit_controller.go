package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"legacyaudit/audit"
	"legacyaudit/database"
	"legacyaudit/middleware"
)

const maxListLimit = 500

// AuditController serves the audit query and ingestion endpoints.
type AuditController struct {
	store *audit.Store
}

func NewAuditController(store *audit.Store) *AuditController {
	return &AuditController{store: store}
}

// AuditRequest is the body of POST /api/audits.
type AuditRequest struct {
	AuditableType         string         `json:"auditable_type" binding:"required"`
	AuditableID           int64          `json:"auditable_id" binding:"required"`
	Action                string         `json:"action" binding:"required"`
	Changes               map[string]any `json:"changes"`
	MemberEditorUID       *int64         `json:"member_editor_uid"`
	QuintessEditorUID     *int64         `json:"quintess_editor_uid"`
	MembershipUID         *int64         `json:"membership_uid"`
	MembershipContractUID *int64         `json:"membership_contract_uid"`
}

type auditedClassRequest struct {
	Name string `json:"name" binding:"required"`
}

func requestLogger(c *gin.Context) *log.Entry {
	return log.WithField("request_id", c.GetString(middleware.ContextRequestID))
}

// ListAudits returns audits filtered by the query string
func (ac *AuditController) ListAudits(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	audits, err := ac.store.Find(c.Request.Context(), q)
	if err != nil {
		requestLogger(c).WithError(err).Error("List audits failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audits"})
		return
	}
	c.JSON(http.StatusOK, audits)
}

func parseQuery(c *gin.Context) (audit.Query, error) {
	q := audit.Query{
		Action:     strings.ToLower(strings.TrimSpace(c.Query("action"))),
		Descending: strings.EqualFold(c.Query("order"), "desc"),
	}

	auditableType, rawID := c.Query("auditable_type"), c.Query("auditable_id")
	if auditableType != "" || rawID != "" {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return q, errors.New("auditable_type and a numeric auditable_id must be given together")
		}
		ref, err := database.NewAuditableRef(auditableType, id)
		if err != nil {
			return q, err
		}
		q.Auditable = &ref
	}

	if raw := c.Query("up_until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, errors.New("up_until must be an RFC3339 timestamp")
		}
		t = t.UTC()
		q.UpUntil = &t
	}

	versions := []struct {
		param string
		dst   **int
	}{
		{"from_version", &q.FromVersion},
		{"to_version", &q.ToVersion},
	}
	for _, bound := range versions {
		raw := c.Query(bound.param)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, errors.New(bound.param + " must be an integer")
		}
		*bound.dst = &v
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return q, errors.New("limit must be a non-negative integer")
		}
		q.Limit = min(limit, maxListLimit)
	}

	return q, nil
}

func auditUIDParam(c *gin.Context) (int64, bool) {
	uid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || uid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid audit ID"})
		return 0, false
	}
	return uid, true
}

// GetAudit returns one audit by its uid
func (ac *AuditController) GetAudit(c *gin.Context) {
	uid, ok := auditUIDParam(c)
	if !ok {
		return
	}

	a, err := ac.store.Get(c.Request.Context(), uid)
	if errors.Is(err, audit.ErrAuditNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// GetAncestors returns the history of an audit's entity up to and including it
func (ac *AuditController) GetAncestors(c *gin.Context) {
	uid, ok := auditUIDParam(c)
	if !ok {
		return
	}

	audits, err := ac.store.Ancestors(c.Request.Context(), uid)
	switch {
	case errors.Is(err, audit.ErrAuditNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
	case errors.Is(err, database.ErrInvalidAuditable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Audit has no auditable reference"})
	case err != nil:
		requestLogger(c).WithError(err).WithField("audit_uid", uid).Error("Load ancestors failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ancestors"})
	default:
		c.JSON(http.StatusOK, audits)
	}
}

// CreateAudit records an audit event
func (ac *AuditController) CreateAudit(c *gin.Context) {
	var req AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := database.NewAuditableRef(req.AuditableType, req.AuditableID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := audit.WithActors(c.Request.Context(), req.MemberEditorUID, req.QuintessEditorUID)
	res, err := ac.store.Record(ctx, audit.Entry{
		Auditable:             ref,
		Action:                strings.ToLower(strings.TrimSpace(req.Action)),
		Changes:               req.Changes,
		MembershipUID:         req.MembershipUID,
		MembershipContractUID: req.MembershipContractUID,
	})
	if err != nil {
		requestLogger(c).WithError(err).Error("Record audit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record audit"})
		return
	}

	if res.Suppressed {
		c.JSON(http.StatusAccepted, gin.H{"suppressed": true})
		return
	}
	c.JSON(http.StatusCreated, res.Audit)
}

// ListAuditedClasses returns the cached auditable type names
func (ac *AuditController) ListAuditedClasses(c *gin.Context) {
	names, err := ac.store.AuditedClasses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audited classes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": names})
}

// AddAuditedClass registers a type name in the cache
func (ac *AuditController) AddAuditedClass(c *gin.Context) {
	var req auditedClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := ac.store.AddAuditedClass(c.Request.Context(), req.Name)
	if errors.Is(err, database.ErrInvalidAuditable) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type name must not be blank"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add audited class"})
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"name": strings.TrimSpace(req.Name), "added": added})
}
