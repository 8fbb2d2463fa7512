package main

import (
	"context"
	"flag"
	"insurance_crm_go/config"
	"insurance_crm_go/db"
	"insurance_crm_go/models"
	"insurance_crm_go/services"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	runName := flag.String("run", "default", "migration run name (resumes an existing run of the same name)")
	rollback := flag.Bool("rollback", false, "revert the named run instead of migrating")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	phase := cfg.MigrationPhase
	log.Printf("Migration phase: %s (batch size %d, rollback enabled: %v)",
		phase.Name, phase.BatchSize, phase.EnableRollback)

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

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

	actor := services.AuditActor{Name: "migrate-policies"}

	if *rollback {
		reverted, err := services.RollbackMigration(db.DB, phase, *runName, actor)
		if err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Printf("Rollback completed: %d record(s) reverted", reverted)
		return
	}

	// Cancellation is honored between batches; each batch commits on its
	// own, so an interrupted run resumes from the checkpoint.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting batch migration run %q...", *runName)
	summary, err := services.MigrateLegacyPolicies(ctx, db.DB, phase, *runName, actor)
	if summary != nil {
		log.Printf("Run %q: %d batch(es), %d migrated, %d skipped, high-water mark %d",
			summary.RunName, summary.BatchesCompleted, summary.Migrated, summary.Skipped, summary.LastLegacyID)
		if summary.Halted {
			log.Printf("Run halted: %s", summary.HaltReason)
		}
	}
	if err != nil {
		log.Fatalf("Migration run failed: %v", err)
	}
	log.Println("Migration run completed")
}
