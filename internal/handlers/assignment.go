package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/epaproditus/geo-profile-dashboard/internal/assignment"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/epaproditus/geo-profile-dashboard/internal/repo"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AssignmentManager is the manager surface the handler needs.
type AssignmentManager interface {
	Create(ctx context.Context, profileID, deviceID, durationMinutes int) (*models.Assignment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
}

// AssignmentHandler handles quick (temporary) profile assignments.
type AssignmentHandler struct {
	Manager AssignmentManager
	Repo    *repo.AssignmentRepo
}

// CreateAssignment installs a profile on a device for a bounded duration.
// Body: {"profile_id": 1, "device_id": 2, "duration_minutes": 60}.
func (h *AssignmentHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ProfileID       int `json:"profile_id"`
		DeviceID        int `json:"device_id"`
		DurationMinutes int `json:"duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	fields := make(map[string]string)
	if input.ProfileID <= 0 {
		fields["profile_id"] = "required"
	}
	if input.DeviceID <= 0 {
		fields["device_id"] = "required"
	}
	if input.DurationMinutes <= 0 {
		fields["duration_minutes"] = "must be positive"
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	a, err := h.Manager.Create(r.Context(), input.ProfileID, input.DeviceID, input.DurationMinutes)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrProfileNotAllowed):
			JSONError(w, "profile is not allowed for quick assignment", http.StatusForbidden)
		case errors.Is(err, repo.ErrDuplicateActive):
			JSONError(w, err.Error(), http.StatusConflict)
		default:
			// Install push failures land here: the creation path is
			// synchronous and user-facing, so the caller sees the error.
			JSONError(w, "assignment failed: "+err.Error(), http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a)
}

// CancelAssignment ends an assignment early.
func (h *AssignmentHandler) CancelAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid assignment id", http.StatusBadRequest)
		return
	}

	a, err := h.Manager.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			JSONError(w, "assignment not found", http.StatusNotFound)
			return
		}
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a)
}

// ListAssignments returns assignments, newest first. Query: limit, offset.
func (h *AssignmentHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	list, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}
