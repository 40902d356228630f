package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/jobs"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/repository/postgres"
	"zephyrm-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'purge-settled-jobs', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Zephyrm Cronjob Runner...", "log_level", cfg.Log.Level)

	if cfg.Database.Driver == "memory" {
		log.Fatalf("The cronjob runner needs a shared database; driver %q keeps state inside the server process", cfg.Database.Driver)
	}
	driver, err := postgres.DriverName(cfg.Database.Driver)
	if err != nil {
		log.Fatalf("Invalid database driver: %v", err)
	}

	// Initialize Database
	logger.Info("Connecting to database...", "driver", driver, "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open(driver, cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	// No reminder loop lives here; server instances pick up new jobs on
	// their idle poll.
	jobRunner := jobs.NewJobRunner(jobs.Repositories{
		Jobs:          store.JobRepository,
		Assets:        store.AssetRepository,
		Notifications: store.NotificationRepository,
	}, nil, cfg, metrics.New())

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "purge-settled-jobs":
		jobRunner.PurgeSettledJobs()
	case "audit-assets":
		jobRunner.AuditAssetConsistency()
	case "sweep-reminders":
		jobRunner.SweepReminders()
	case "purge-read-notifications":
		jobRunner.PurgeReadNotifications()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - purge-settled-jobs\n")
		fmt.Printf("  - audit-assets\n")
		fmt.Printf("  - sweep-reminders\n")
		fmt.Printf("  - purge-read-notifications\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
