package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/epaproditus/geo-profile-dashboard/internal/config"
	"github.com/epaproditus/geo-profile-dashboard/internal/db"
	"github.com/robfig/cron/v3"
)

func main() {

	// Load configuration
	cfg := config.Load()

	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	// Missing MDM credentials are a configuration error: fail fast, nothing executed.
	if cfg.SimpleMDMAPIKey == "" {
		log.Fatal("SIMPLEMDM_API_KEY is required")
	}
	if cfg.Env == "prod" && cfg.JWTSecret == "supersecretkey" {
		log.Fatal("JWT_SECRET must be set in prod")
	}

	// Connect to database FIRST
	database, err := db.Connect(
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBUser,
		cfg.DBPass,
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)

	logger.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	migrateURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(cfg.DBUser), url.QueryEscape(cfg.DBPass),
		cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err := db.Run(migrateURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	d := buildDeps(database, cfg, logger)
	r := newRouter(database, cfg, logger, d)

	// Optional in-process poll loop. An external cron hitting the trigger
	// endpoint is the primary mechanism; enable only one of the two.
	if cfg.PollEnabled {
		c := cron.New()
		spec := fmt.Sprintf("@every %dm", cfg.PollIntervalMinutes)
		_, err := c.AddFunc(spec, func() {
			ctx := context.Background()
			if res, err := d.executor.Run(ctx); err != nil {
				logger.Error("poll: executor run failed", "err", err)
			} else if len(res.Results) > 0 {
				logger.Info("poll: executor run", "executed", res.Executed, "failed", res.Failed)
			}
			if _, err := d.manager.Reap(ctx); err != nil {
				logger.Error("poll: reaper pass failed", "err", err)
			}
		})
		if err != nil {
			log.Fatalf("Failed to start poll loop: %v", err)
		}
		c.Start()
		defer c.Stop()
		logger.Info("poll loop enabled", "interval_minutes", cfg.PollIntervalMinutes)
	}

	// Start server LAST
	addr := ":" + cfg.Port
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		logger.Info("starting server with TLS", "addr", addr)
		err = http.ListenAndServeTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile, r)
	} else {
		logger.Info("starting server", "addr", addr)
		err = http.ListenAndServe(addr, r)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
