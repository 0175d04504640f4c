package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/filter"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/epaproditus/geo-profile-dashboard/internal/repo"
	"github.com/go-chi/chi/v5"
)

// ScheduleHandler handles profile-push schedule CRUD. It owns the UI-side
// fields only; last_executed_at belongs to the executor and is never writable
// here.
type ScheduleHandler struct {
	Repo *repo.ScheduleRepo
}

type scheduleInput struct {
	Name              string     `json:"name"`
	ProfileID         int        `json:"profile_id"`
	DeviceFilter      *string    `json:"device_filter"`
	ScheduleType      string     `json:"schedule_type"`
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	RecurrencePattern *string    `json:"recurrence_pattern"`
	RecurrenceDays    []int      `json:"recurrence_days"`
	Enabled           *bool      `json:"enabled"`
}

// validate returns field-level errors for a create/update payload.
func (in *scheduleInput) validate() map[string]string {
	fields := make(map[string]string)
	if in.Name == "" {
		fields["name"] = "required"
	}
	if in.ProfileID <= 0 {
		fields["profile_id"] = "required"
	}
	if in.StartTime == nil {
		fields["start_time"] = "required"
	}
	switch in.ScheduleType {
	case models.ScheduleTypeOneTime, models.ScheduleTypeRecurring:
	default:
		fields["schedule_type"] = "must be one_time or recurring"
	}
	if in.ScheduleType == models.ScheduleTypeRecurring {
		if in.RecurrencePattern == nil {
			fields["recurrence_pattern"] = "required for recurring schedules"
		} else {
			switch *in.RecurrencePattern {
			case models.PatternDaily, models.PatternWeekly, models.PatternMonthly:
			default:
				fields["recurrence_pattern"] = "must be daily, weekly, or monthly"
			}
		}
	}
	for _, d := range in.RecurrenceDays {
		if d < 0 || d > 6 {
			fields["recurrence_days"] = "weekday numbers must be 0..6"
			break
		}
	}
	// Validate the filter at the boundary so a bad filter is rejected here
	// instead of silently matching nothing at execution time.
	if in.DeviceFilter != nil && *in.DeviceFilter != "" {
		if _, err := filter.Parse(*in.DeviceFilter); err != nil {
			fields["device_filter"] = err.Error()
		}
	}
	return fields
}

func (in *scheduleInput) toModel() models.Schedule {
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	s := models.Schedule{
		Name:              in.Name,
		ProfileID:         in.ProfileID,
		DeviceFilter:      in.DeviceFilter,
		ScheduleType:      in.ScheduleType,
		EndTime:           in.EndTime,
		RecurrencePattern: in.RecurrencePattern,
		RecurrenceDays:    in.RecurrenceDays,
		Enabled:           enabled,
	}
	if in.StartTime != nil {
		s.StartTime = *in.StartTime
	}
	return s
}

// ListSchedules returns paginated schedules (query: limit, offset).
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
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

// GetSchedule returns one schedule by id.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}

	s, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// CreateSchedule creates a new schedule.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var input scheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if input.ScheduleType == "" {
		input.ScheduleType = models.ScheduleTypeOneTime
	}
	if fields := input.validate(); len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	s, err := h.Repo.Create(r.Context(), input.toModel())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s)
}

// UpdateSchedule replaces the UI-owned fields of a schedule.
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}

	var input scheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if input.ScheduleType == "" {
		input.ScheduleType = models.ScheduleTypeOneTime
	}
	if fields := input.validate(); len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	if err := h.Repo.Update(r.Context(), id, input.toModel()); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	s, _ := h.Repo.GetByID(r.Context(), id)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// SetEnabled enables or disables a schedule. Body: {"enabled": true}.
func (h *ScheduleHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}

	var input struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Enabled == nil {
		JSONError(w, "invalid JSON or missing enabled", http.StatusBadRequest)
		return
	}

	if err := h.Repo.SetEnabled(r.Context(), id, *input.Enabled); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	s, _ := h.Repo.GetByID(r.Context(), id)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// DeleteSchedule deletes a schedule.
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}

	if err := h.Repo.Delete(r.Context(), id); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
