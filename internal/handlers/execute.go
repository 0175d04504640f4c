package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/epaproditus/geo-profile-dashboard/internal/assignment"
	"github.com/epaproditus/geo-profile-dashboard/internal/executor"
)

// Runner is the executor surface the trigger endpoint needs.
type Runner interface {
	Run(ctx context.Context) (*executor.RunResult, error)
}

// Reaper is the quick-assignment reaper surface for the reap trigger.
type Reaper interface {
	Reap(ctx context.Context) (*assignment.ReapResult, error)
}

// ExecuteHandler exposes the schedule-execution trigger. POST is primary;
// GET is accepted for host-cron compatibility. Authentication is an API-key
// header, with a loopback bypass so a local crontab entry needs no secret.
//
// Deployment assumption: a single instance runs this endpoint. There is no
// distributed lock; overlapping invocations across instances can double-fire
// a due schedule.
type ExecuteHandler struct {
	Executor Runner
	Reaper   Reaper
	APIKey   string
	Log      *slog.Logger
}

// authorized checks the X-API-Key header, falling back to a loopback-origin
// bypass. An empty configured key means loopback-only.
func (h *ExecuteHandler) authorized(r *http.Request) bool {
	if h.APIKey != "" && r.Header.Get("X-API-Key") == h.APIKey {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ExecuteSchedules runs the executor once and returns its summary.
// No due schedules returns {"message": "No schedules to execute"}.
func (h *ExecuteHandler) ExecuteSchedules(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		JSONError(w, "invalid or missing API key", http.StatusUnauthorized)
		return
	}

	result, err := h.Executor.Run(r.Context())
	if err != nil {
		if errors.Is(err, executor.ErrAlreadyRunning) {
			JSONError(w, "execution already in progress", http.StatusConflict)
			return
		}
		h.Log.Error("executor run failed", "err", err)
		JSONError(w, "schedule execution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if len(result.Results) == 0 {
		json.NewEncoder(w).Encode(map[string]string{"message": "No schedules to execute"})
		return
	}
	json.NewEncoder(w).Encode(result)
}

// ReapAssignments runs one reaper pass over expired quick assignments.
func (h *ExecuteHandler) ReapAssignments(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		JSONError(w, "invalid or missing API key", http.StatusUnauthorized)
		return
	}

	result, err := h.Reaper.Reap(r.Context())
	if err != nil {
		h.Log.Error("reaper pass failed", "err", err)
		JSONError(w, "assignment reaping failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
