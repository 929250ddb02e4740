package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"legacyaudit/controllers"
	"legacyaudit/middleware"
)

// SetupRoutes configures all application routes. gatherer backs /metrics.
func SetupRoutes(r *gin.Engine, ac *controllers.AuditController, gatherer prometheus.Gatherer) {
	// Public routes (no authentication required)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Protected routes (authentication required)
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	{
		audits := protected.Group("/audits")
		{
			audits.GET("", middleware.AuditReaderAuthMiddleware(), ac.ListAudits)
			audits.POST("", middleware.AdminAuthMiddleware(), ac.CreateAudit)
			audits.GET("/types", middleware.AuditReaderAuthMiddleware(), ac.ListAuditedClasses)
			audits.POST("/types", middleware.AdminAuthMiddleware(), ac.AddAuditedClass)
			audits.GET("/:id", middleware.AuditReaderAuthMiddleware(), ac.GetAudit)
			audits.GET("/:id/ancestors", middleware.AuditReaderAuthMiddleware(), ac.GetAncestors)
		}

		// Admin routes
		admin := protected.Group("/admin/audits")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.GET("/disabled", ac.GetAuditingDisabled)
			admin.PUT("/disabled", ac.SetAuditingDisabled)
			admin.GET("/foreign-keys", ac.GetForeignKeys)
			admin.PUT("/foreign-keys", ac.SetForeignKeys)
		}
	}
}
