package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legacyaudit/audit"
)

type disabledRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

type foreignKeysRequest struct {
	Keys audit.ForeignKeys `json:"keys"`
}

// GetAuditingDisabled reports the disabled flag
func (ac *AuditController) GetAuditingDisabled(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"disabled": ac.store.Registry().Disabled()})
}

// SetAuditingDisabled turns audit writes off or back on (Admin only)
func (ac *AuditController) SetAuditingDisabled(c *gin.Context) {
	var req disabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ac.store.Registry().SetDisabled(*req.Disabled)
	requestLogger(c).WithField("disabled", *req.Disabled).Info("Audit disabled flag changed")
	c.JSON(http.StatusOK, gin.H{"disabled": *req.Disabled})
}

// GetForeignKeys returns the foreign-key context and its consistency check
func (ac *AuditController) GetForeignKeys(c *gin.Context) {
	_, check := ac.store.ForeignKeys(c.Request.Context())
	c.JSON(http.StatusOK, foreignKeyCheckResponse(check))
}

// SetForeignKeys replaces the foreign-key context (Admin only)
func (ac *AuditController) SetForeignKeys(c *gin.Context) {
	var req foreignKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ac.store.Registry().SetForeignKeys(req.Keys)
	check := ac.store.CheckForeignKeys(c.Request.Context())
	c.JSON(http.StatusOK, foreignKeyCheckResponse(check))
}

func foreignKeyCheckResponse(check audit.ForeignKeyCheck) gin.H {
	resp := gin.H{
		"keys":       check.Keys,
		"checked":    check.Checked,
		"consistent": check.Consistent,
		"mismatch":   check.Mismatch(),
	}
	if check.Err != nil {
		resp["error"] = "Membership lookup failed"
	}
	return resp
}
