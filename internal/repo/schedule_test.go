package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/lib/pq"
)

var scheduleRows = []string{
	"id", "name", "profile_id", "device_filter", "schedule_type", "start_time", "end_time",
	"recurrence_pattern", "recurrence_days", "enabled", "last_executed_at", "created_at",
}

func TestScheduleRepo_FindDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)
	window := 15 * time.Minute
	start := now.Add(-2 * time.Minute)

	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+WHERE enabled = true\s+AND start_time <= \$1\s+AND start_time > \$2\s+AND last_executed_at IS NULL\s+ORDER BY start_time ASC`).
		WithArgs(now, now.Add(-window)).
		WillReturnRows(sqlmock.NewRows(scheduleRows).
			AddRow(7, "morning push", 100, nil, "recurring", start, nil, "weekly", "{1,3,5}", true, nil, now))

	repo := NewScheduleRepo(db)
	due, err := repo.FindDue(context.Background(), now, window)
	if err != nil {
		t.Fatalf("FindDue: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d schedules, want 1", len(due))
	}
	s := due[0]
	if s.ID != 7 || s.ProfileID != 100 || !s.Enabled {
		t.Errorf("unexpected schedule: %+v", s)
	}
	if len(s.RecurrenceDays) != 3 || s.RecurrenceDays[0] != 1 || s.RecurrenceDays[2] != 5 {
		t.Errorf("recurrence days not decoded: %v", s.RecurrenceDays)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleRepo_FindDue_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM schedules`).
		WillReturnError(errors.New("connection reset"))

	repo := NewScheduleRepo(db)
	if _, err := repo.FindDue(context.Background(), time.Now(), 15*time.Minute); err == nil {
		t.Fatal("query error must propagate, never read as an empty due set")
	}
}

func TestScheduleRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	pattern := "daily"
	s := models.Schedule{
		Name:              "nightly",
		ProfileID:         100,
		ScheduleType:      models.ScheduleTypeRecurring,
		StartTime:         now,
		RecurrencePattern: &pattern,
		RecurrenceDays:    []int{2, 4},
		Enabled:           true,
	}

	mock.ExpectQuery(`INSERT INTO schedules \(name, profile_id, device_filter, schedule_type, start_time, end_time,\s+recurrence_pattern, recurrence_days, enabled\)`).
		WithArgs("nightly", 100, nil, "recurring", now, nil, "daily", pq.Int64Array{2, 4}, true).
		WillReturnRows(sqlmock.NewRows(scheduleRows).
			AddRow(1, "nightly", 100, nil, "recurring", now, nil, pattern, "{2,4}", true, nil, now))

	repo := NewScheduleRepo(db)
	created, err := repo.Create(context.Background(), s)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != 1 || created.Name != "nightly" {
		t.Errorf("unexpected schedule: %+v", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleRepo_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+WHERE id = \$1`).
		WithArgs(999).
		WillReturnRows(sqlmock.NewRows(scheduleRows))

	repo := NewScheduleRepo(db)
	s, err := repo.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil for missing schedule, got %+v", s)
	}
}

func TestScheduleRepo_MarkExecuted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	at := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE schedules SET last_executed_at = \$1 WHERE id = \$2`).
		WithArgs(at, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewScheduleRepo(db)
	if err := repo.MarkExecuted(context.Background(), 7, at); err != nil {
		t.Fatalf("MarkExecuted: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleRepo_Reschedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	next := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	// One statement advances start_time and clears last_executed_at together.
	mock.ExpectExec(`UPDATE schedules SET start_time = \$1, last_executed_at = NULL WHERE id = \$2`).
		WithArgs(next, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewScheduleRepo(db)
	if err := repo.Reschedule(context.Background(), 7, next); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleRepo_SetEnabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE schedules SET enabled = \$1 WHERE id = \$2`).
		WithArgs(false, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewScheduleRepo(db)
	if err := repo.SetEnabled(context.Background(), 7, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
}

func TestScheduleRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM schedules\s+ORDER BY id DESC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(scheduleRows).
			AddRow(2, "b", 100, nil, "one_time", now, nil, nil, nil, true, nil, now).
			AddRow(1, "a", 100, nil, "one_time", now, nil, nil, nil, false, nil, now))

	repo := NewScheduleRepo(db)
	list, err := repo.List(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 {
		t.Errorf("unexpected list: %+v", list)
	}
}
