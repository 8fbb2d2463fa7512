package config

import (
	"insurance_crm_go/services"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DBPath      string
	Environment string
	// Cron spec for the background expiry sweep and snapshot purge
	ExpirySweepSchedule string
	// Migration phase in effect, resolved once at startup. Changing phases
	// requires restarting the process (and any running migration).
	MigrationPhase services.PhaseConfig
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	phaseName := getEnv("POLICY_MIGRATION_PHASE", services.PhasePreparation)
	phase, err := services.PhaseByName(phaseName)
	if err != nil {
		log.Fatalf("[CRITICAL] Invalid POLICY_MIGRATION_PHASE %q: must be one of preparation|migration|transition|complete", phaseName)
	}

	// Overrides apply only when the variable is set; unset variables fall
	// back to the named phase's defaults.
	phase = phase.Apply(services.PhaseOverrides{
		UseTemplateSystem:   getEnvBoolPtr("USE_TEMPLATE_SYSTEM"),
		AllowFallback:       getEnvBoolPtr("ALLOW_FALLBACK"),
		MigrateOnRead:       getEnvBoolPtr("MIGRATE_ON_READ"),
		BatchSize:           getEnvIntPtr("MIGRATION_BATCH_SIZE"),
		EnableAutoMigration: getEnvBoolPtr("ENABLE_AUTO_MIGRATION"),
		EnableRollback:      getEnvBoolPtr("ENABLE_ROLLBACK"),
		BackupRetentionDays: getEnvIntPtr("BACKUP_RETENTION_DAYS"),
		StrictMode:          getEnvBoolPtr("STRICT_MODE"),
		AllowDuplicates:     getEnvBoolPtr("ALLOW_DUPLICATES"),
		ValidateDates:       getEnvBoolPtr("VALIDATE_DATES"),
		ValidateAmounts:     getEnvBoolPtr("VALIDATE_AMOUNTS"),
		BatchTimeoutSeconds: getEnvIntPtr("MIGRATION_BATCH_TIMEOUT_SECONDS"),
	})

	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "db/app.db"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		ExpirySweepSchedule: getEnv("EXPIRY_SWEEP_SCHEDULE", "@hourly"),
		MigrationPhase:      phase,
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBoolPtr returns nil when the variable is unset so the caller can
// distinguish "not provided" from an explicit false
func getEnvBoolPtr(key string) *bool {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var b bool
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		b = true
	case "false", "0", "no", "off":
		b = false
	default:
		log.Printf("[WARNING] Ignoring unparseable boolean for %s: %q", key, value)
		return nil
	}
	return &b
}

// getEnvIntPtr returns nil when the variable is unset or unparseable
func getEnvIntPtr(key string) *int {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[WARNING] Ignoring unparseable integer for %s: %q", key, value)
		return nil
	}
	return &n
}
