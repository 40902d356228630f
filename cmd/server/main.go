package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	httpapi "zephyrm-backend/internal/api/http"
	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/jobs"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/realtime"
	"zephyrm-backend/internal/repository"
	"zephyrm-backend/internal/repository/memory"
	"zephyrm-backend/internal/repository/postgres"
	"zephyrm-backend/internal/scheduler"
	"zephyrm-backend/internal/security"
	"zephyrm-backend/internal/service"
)

// stores is what both store implementations provide.
type stores struct {
	users         repository.UserRepository
	assets        repository.AssetRepository
	requests      repository.RequestRepository
	events        repository.EventRepository
	notifications repository.NotificationRepository
	jobs          repository.JobRepository
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	seedAdmin := flag.String("seed-admin", "", "With the memory driver, create an admin with this email and log a token for it")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Zephyrm Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "database", cfg.Database.Database)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Initialize Repositories
	st, db, err := openStores(cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	mailer, err := service.NewMailer(cfg.SMTP)
	if err != nil {
		logger.Error("Failed to configure mailer", "error", err)
		log.Fatalf("Failed to configure mailer: %v", err)
	}
	mailQueue := service.NewMailQueue(mailer, 2, 100, 3)
	mailQueue.Start(ctx)

	// Realtime delivery, relayed through Redis when configured
	hub := realtime.NewHub(m)
	defer hub.Close()
	var deliverer service.Deliverer = hub
	if cfg.Redis.URL != "" {
		relay, err := realtime.NewRedisRelay(ctx, cfg.Redis.URL, cfg.Redis.Channel, hub)
		if err != nil {
			logger.Error("Failed to start realtime relay", "error", err)
			log.Fatalf("Failed to start realtime relay: %v", err)
		}
		defer relay.Close()
		deliverer = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("Realtime relay stopped", "error", err)
			}
		}()
	}

	// Initialize Services
	userSvc := service.NewUserService(st.users)
	noteSvc := service.NewNotificationService(st.notifications, st.users, deliverer)
	assetSvc := service.NewAssetService(st.assets, st.users, m)
	requestSvc := service.NewRequestService(st.requests, st.assets, st.users, assetSvc, noteSvc, mailQueue, m)

	reminders := scheduler.NewReminderScheduler(st.jobs, st.events, noteSvc, scheduler.ReminderOptions{
		Lead:    cfg.ReminderLead(),
		Metrics: m,
	})
	eventSvc := service.NewEventService(st.events, st.users, st.assets, reminders)

	if *seedAdmin != "" {
		seedAdminUser(ctx, cfg, userSvc, tokens, *seedAdmin)
	}

	// Run recovers jobs left by a previous process before looping.
	reminderDone := make(chan struct{})
	go func() {
		defer close(reminderDone)
		if err := reminders.Run(ctx); err != nil {
			logger.Error("Reminder loop stopped", "error", err)
		}
	}()

	// Maintenance jobs
	jobRunner := jobs.NewJobRunner(jobs.Repositories{
		Jobs:          st.jobs,
		Assets:        st.assets,
		Notifications: st.notifications,
	}, reminders, cfg, m)
	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	router := httpapi.NewRouter(httpapi.Dependencies{
		Assets:         assetSvc,
		Requests:       requestSvc,
		Events:         eventSvc,
		Notifications:  noteSvc,
		Tokens:         tokens,
		Metrics:        m,
		WebSocket:      realtime.ServeWS(hub, tokens, realtime.WSOptionsFromConfig(cfg.Realtime)),
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	<-reminderDone
	mailQueue.Wait()
	logger.Info("Server stopped. Goodbye!")
}

func openStores(cfg *config.Config) (*stores, *sql.DB, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		s := memory.NewStore(nil)
		return &stores{s.UserRepository, s.AssetRepository, s.RequestRepository, s.EventRepository, s.NotificationRepository, s.JobRepository}, nil, nil
	}

	driver, err := postgres.DriverName(cfg.Database.Driver)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connecting to database...", "driver", driver, "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open(driver, cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	s := postgres.NewStore(db)
	return &stores{s.UserRepository, s.AssetRepository, s.RequestRepository, s.EventRepository, s.NotificationRepository, s.JobRepository}, db, nil
}

// seedAdminUser gives a fresh in-memory deployment someone who can act.
// Tokens are normally issued elsewhere.
func seedAdminUser(ctx context.Context, cfg *config.Config, users service.UserService, tokens security.TokenManager, email string) {
	if cfg.Database.Driver != "memory" {
		logger.Warn("Ignoring -seed-admin outside the memory driver")
		return
	}
	u := &domain.User{Email: email, Name: "Administrator", Role: domain.UserRoleAdmin}
	if err := users.Create(ctx, u); err != nil {
		logger.Error("Failed to seed admin", "email", email, "error", err)
		return
	}
	token, err := tokens.GenerateAccessToken(u.ID, u.Email, []string{security.RoleAdmin})
	if err != nil {
		logger.Error("Failed to issue admin token", "error", err)
		return
	}
	logger.Info("Seeded admin user", "userID", u.ID, "email", u.Email, "access_token", token)
}
