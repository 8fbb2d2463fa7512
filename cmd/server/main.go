package main

import (
	"insurance_crm_go/config"
	"insurance_crm_go/db"
	"insurance_crm_go/handlers"
	"insurance_crm_go/middleware"
	"insurance_crm_go/models"
	"insurance_crm_go/services"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load configuration (migration phase resolves once here; changing
	// phases requires a restart)
	cfg := config.Load()
	log.Printf("Policy migration phase: %s", cfg.MigrationPhase.Name)

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(
		&models.Client{},
		&models.PolicyTemplate{},
		&models.PolicyInstance{},
		&models.LegacyPolicy{},
		&models.PolicyMigrationRecord{},
		&models.MigrationCheckpoint{},
		&models.AuditLog{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Phase-bound reader for the legacy/template compatibility layer
	reader := services.NewPolicyReader(db.DB, cfg.MigrationPhase)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.ActorContext())

	// Make config and the phase-bound reader available to handlers
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(handlers.ContextKeyConfig, cfg)
			c.Set(handlers.ContextKeyPolicyReader, reader)
			return next(c)
		}
	})

	api := e.Group("/api")
	{
		// Policy templates
		api.GET("/policy-templates", handlers.GetTemplatesHandler)
		api.POST("/policy-templates", handlers.CreateTemplateHandler)
		api.GET("/policy-templates/search", handlers.SearchTemplatesHandler)
		api.GET("/policy-templates/expiry/warnings", handlers.ExpiryWarningsHandler)
		api.GET("/policy-templates/expiry/summary", handlers.ExpirySummaryHandler)
		api.POST("/policy-templates/expiry/update-expired", handlers.UpdateExpiredHandler)
		api.GET("/policy-templates/:id", handlers.GetTemplateHandler)
		api.PUT("/policy-templates/:id", handlers.UpdateTemplateHandler)
		api.DELETE("/policy-templates/:id", handlers.DeleteTemplateHandler)

		// Policy instances
		api.POST("/policy-instances", handlers.CreateInstanceHandler)
		api.POST("/policy-instances/validate-association", handlers.ValidateAssociationHandler)
		api.POST("/policy-instances/calculate-expiry", handlers.CalculateExpiryHandler)
		api.GET("/policy-instances/:id", handlers.GetInstanceHandler)
		api.PUT("/policy-instances/:id", handlers.UpdateInstanceHandler)
		api.PATCH("/policy-instances/:id/status", handlers.UpdateInstanceStatusHandler)
		api.DELETE("/policy-instances/:id", handlers.DeleteInstanceHandler)

		// Client-scoped reads (routed through the compatibility layer)
		api.GET("/clients/:id/policies", handlers.ClientPoliciesHandler)
		api.GET("/clients/:id/policy-stats", handlers.ClientPolicyStatsHandler)
		api.GET("/clients/:id/audit-log", handlers.ClientAuditLogHandler)
		api.GET("/clients/:id/audit-stats", handlers.ClientAuditStatsHandler)

		// Audit reporting
		api.GET("/audit-report", handlers.AuditReportHandler)
	}

	// Scheduled jobs: expiry sweep and migration snapshot retention
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ExpirySweepSchedule, func() {
		if _, err := services.SweepExpiredInstances(db.DB, time.Now()); err != nil {
			log.Printf("Error sweeping expired instances: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule expiry sweep: %v", err)
	}
	if _, err := scheduler.AddFunc("@daily", func() {
		if _, err := services.PurgeExpiredSnapshots(db.DB, cfg.MigrationPhase.BackupRetentionDays, time.Now()); err != nil {
			log.Printf("Error purging migration snapshots: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule snapshot purge: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
