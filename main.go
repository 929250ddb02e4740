package main

import (
	"fmt"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"legacyaudit/audit"
	"legacyaudit/config"
	"legacyaudit/controllers"
	"legacyaudit/database"
	"legacyaudit/metrics"
	"legacyaudit/middleware"
	"legacyaudit/routes"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	if err := run(); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

// run owns every resource it opens, so its defers run before main exits.
func run() error {
	if err := config.InitConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := config.AppConfig

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DBs
	if err := database.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize GORM database: %w", err)
	}
	defer database.CloseDB()

	if err := database.InitLegacyDB(); err != nil {
		return fmt.Errorf("failed to initialize legacy database: %w", err)
	}
	defer database.CloseLegacyDB()

	if cfg.AutoMigrate {
		if err := database.RunMigrations(database.DB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	registry := audit.NewRegistry()
	registry.SetDisabled(cfg.AuditDisabled)
	store := audit.NewStore(database.DB, registry,
		audit.WithMembershipLookup(database.NewMembershipRepository(database.LegacyDB)),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.MetricsMiddleware())

	// CORS settings
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", middleware.HeaderRequestID},
	}))

	routes.SetupRoutes(r, controllers.NewAuditController(store), prometheus.DefaultGatherer)

	addr := "0.0.0.0:" + cfg.Port
	log.WithFields(log.Fields{"addr": addr, "audit_disabled": cfg.AuditDisabled}).Info("Server starting")
	if err := r.Run(addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
