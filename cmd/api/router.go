package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/assignment"
	"github.com/epaproditus/geo-profile-dashboard/internal/cache"
	"github.com/epaproditus/geo-profile-dashboard/internal/config"
	"github.com/epaproditus/geo-profile-dashboard/internal/executor"
	"github.com/epaproditus/geo-profile-dashboard/internal/handlers"
	"github.com/epaproditus/geo-profile-dashboard/internal/middleware"
	"github.com/epaproditus/geo-profile-dashboard/internal/notify"
	"github.com/epaproditus/geo-profile-dashboard/internal/repo"
	"github.com/epaproditus/geo-profile-dashboard/internal/simplemdm"
	"github.com/epaproditus/geo-profile-dashboard/internal/telemetry"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// deps bundles everything the router and poll loop share.
type deps struct {
	executor    *executor.Executor
	manager     *assignment.Manager
	mdm         *simplemdm.Client
	deviceCache *cache.DeviceCache // nil when redis is not configured
}

// buildDeps wires repositories, the SimpleMDM client, and the two engines
// from config. Every component gets its collaborators passed explicitly;
// there is no package-level client state anywhere.
func buildDeps(db *sql.DB, cfg config.Config, log *slog.Logger) *deps {
	mdm := simplemdm.New(simplemdm.Config{
		APIKey:  cfg.SimpleMDMAPIKey,
		BaseURL: cfg.SimpleMDMBaseURL,
		Timeout: time.Duration(cfg.SimpleMDMTimeoutSeconds) * time.Second,
	})

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyWebhookURL, log)
	}
	var pinger telemetry.Pinger = telemetry.Nop{}
	if cfg.HeartbeatURL != "" {
		pinger = telemetry.NewHeartbeat(cfg.HeartbeatURL, log)
	}
	var deviceCache *cache.DeviceCache
	if cfg.RedisAddr != "" {
		deviceCache = cache.New(cfg.RedisAddr,
			time.Duration(cfg.DeviceCacheTTLSeconds)*time.Second, log)
	}

	execCfg := executor.Config{
		Schedules: repo.NewScheduleRepo(db),
		Logs:      repo.NewAPILogRepo(db),
		MDM:       mdm,
		Notifier:  notifier,
		Telemetry: pinger,
		Window:    time.Duration(cfg.ExecutionWindowMinutes) * time.Minute,
		Log:       log,
	}
	if deviceCache != nil {
		execCfg.Cache = deviceCache
	}

	return &deps{
		executor: executor.New(execCfg),
		manager: assignment.NewManager(assignment.Config{
			Store:           repo.NewAssignmentRepo(db),
			Logs:            repo.NewAPILogRepo(db),
			MDM:             mdm,
			Notifier:        notifier,
			AllowedProfiles: cfg.AllowedQuickProfiles,
			Log:             log,
		}),
		mdm:         mdm,
		deviceCache: deviceCache,
	}
}

// newRouter builds the full API router around shared deps. Kept separate from
// main so the integration tests can mount it on httptest with a sqlmock DB.
func newRouter(db *sql.DB, cfg config.Config, log *slog.Logger, d *deps) chi.Router {
	scheduleHandler := &handlers.ScheduleHandler{Repo: repo.NewScheduleRepo(db)}
	executeHandler := &handlers.ExecuteHandler{
		Executor: d.executor,
		Reaper:   d.manager,
		APIKey:   cfg.ExecuteAPIKey,
		Log:      log,
	}
	assignmentHandler := &handlers.AssignmentHandler{
		Manager: d.manager,
		Repo:    repo.NewAssignmentRepo(db),
	}
	deviceHandler := &handlers.DeviceHandler{MDM: d.mdm, Log: log}
	if d.deviceCache != nil {
		deviceHandler.Cache = d.deviceCache
	}
	logHandler := &handlers.APILogHandler{Repo: repo.NewAPILogRepo(db)}
	authHandler := &handlers.AuthHandler{
		UserRepo:    repo.NewUserRepo(db),
		Secret:      []byte(cfg.JWTSecret),
		ExpireHours: cfg.JWTExpireHours,
		Log:         log,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	authLimiter := middleware.AuthRateLimiter()
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
	})

	// Trigger endpoints: API key or loopback, not JWT, so host cron can hit
	// them. GET is accepted for cron implementations that cannot POST.
	r.Post("/schedules/execute", executeHandler.ExecuteSchedules)
	r.Get("/schedules/execute", executeHandler.ExecuteSchedules)
	r.Post("/assignments/reap", executeHandler.ReapAssignments)
	r.Get("/assignments/reap", executeHandler.ReapAssignments)

	// Operator surface, JWT-protected.
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))

		r.Get("/schedules", scheduleHandler.ListSchedules)
		r.Post("/schedules", scheduleHandler.CreateSchedule)
		r.Get("/schedules/{id}", scheduleHandler.GetSchedule)
		r.Put("/schedules/{id}", scheduleHandler.UpdateSchedule)
		r.Patch("/schedules/{id}/enabled", scheduleHandler.SetEnabled)
		r.Delete("/schedules/{id}", scheduleHandler.DeleteSchedule)

		r.Get("/assignments", assignmentHandler.ListAssignments)
		r.Post("/assignments", assignmentHandler.CreateAssignment)
		r.Post("/assignments/{id}/cancel", assignmentHandler.CancelAssignment)

		r.Get("/devices", deviceHandler.ListDevices)
		r.Get("/devices/{id}", deviceHandler.GetDevice)

		r.Get("/logs", logHandler.ListLogs)
	})

	return r
}
