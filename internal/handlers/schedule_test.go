package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/epaproditus/geo-profile-dashboard/internal/repo"
	"github.com/go-chi/chi/v5"
)

var scheduleRows = []string{
	"id", "name", "profile_id", "device_filter", "schedule_type", "start_time", "end_time",
	"recurrence_pattern", "recurrence_days", "enabled", "last_executed_at", "created_at",
}

func newScheduleRouter(t *testing.T) (chi.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &ScheduleHandler{Repo: repo.NewScheduleRepo(db)}
	r := chi.NewRouter()
	r.Get("/schedules", h.ListSchedules)
	r.Post("/schedules", h.CreateSchedule)
	r.Get("/schedules/{id}", h.GetSchedule)
	r.Patch("/schedules/{id}/enabled", h.SetEnabled)
	r.Delete("/schedules/{id}", h.DeleteSchedule)
	return r, mock
}

func TestCreateScheduleValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string // expected field in the validation error
	}{
		{
			name: "missing name",
			body: `{"profile_id":100,"start_time":"2025-03-10T09:00:00Z"}`,
			want: "name",
		},
		{
			name: "missing start time",
			body: `{"name":"x","profile_id":100}`,
			want: "start_time",
		},
		{
			name: "bad schedule type",
			body: `{"name":"x","profile_id":100,"start_time":"2025-03-10T09:00:00Z","schedule_type":"hourly"}`,
			want: "schedule_type",
		},
		{
			name: "recurring without pattern",
			body: `{"name":"x","profile_id":100,"start_time":"2025-03-10T09:00:00Z","schedule_type":"recurring"}`,
			want: "recurrence_pattern",
		},
		{
			name: "bad weekday",
			body: `{"name":"x","profile_id":100,"start_time":"2025-03-10T09:00:00Z","recurrence_days":[8]}`,
			want: "recurrence_days",
		},
		{
			name: "malformed device filter rejected at the boundary",
			body: `{"name":"x","profile_id":100,"start_time":"2025-03-10T09:00:00Z","device_filter":"{\"version\":2}"}`,
			want: "device_filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newScheduleRouter(t)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(tt.body))
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400", rec.Code)
			}
			var out struct {
				Fields map[string]string `json:"fields"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := out.Fields[tt.want]; !ok {
				t.Errorf("expected field error for %q, got %v", tt.want, out.Fields)
			}
		})
	}
}

func TestCreateSchedule(t *testing.T) {
	r, mock := newScheduleRouter(t)

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO schedules`).
		WillReturnRows(sqlmock.NewRows(scheduleRows).
			AddRow(1, "morning push", 100, nil, "one_time", now, nil, nil, nil, true, nil, now))

	body := `{"name":"morning push","profile_id":100,"start_time":"2025-03-10T09:00:00Z"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var s models.Schedule
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.ID != 1 || s.Name != "morning push" {
		t.Errorf("unexpected schedule: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestGetScheduleNotFound(t *testing.T) {
	r, mock := newScheduleRouter(t)

	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+WHERE id = \$1`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows(scheduleRows))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules/99", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestGetScheduleBadID(t *testing.T) {
	r, _ := newScheduleRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules/abc", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestSetEnabled(t *testing.T) {
	r, mock := newScheduleRouter(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE schedules SET enabled = \$1 WHERE id = \$2`).
		WithArgs(false, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(scheduleRows).
			AddRow(7, "x", 100, nil, "one_time", now, nil, nil, nil, false, nil, now))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/schedules/7/enabled", strings.NewReader(`{"enabled":false}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var s models.Schedule
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Enabled {
		t.Error("schedule should be disabled")
	}
}

func TestSetEnabledMissingField(t *testing.T) {
	r, _ := newScheduleRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/schedules/7/enabled", strings.NewReader(`{}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestDeleteSchedule(t *testing.T) {
	r, mock := newScheduleRouter(t)

	mock.ExpectExec(`DELETE FROM schedules WHERE id = \$1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/schedules/7", nil)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", rec.Code)
	}
}
