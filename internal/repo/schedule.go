package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/lib/pq"
)

const scheduleColumns = `id, name, profile_id, device_filter, schedule_type, start_time, end_time,
		recurrence_pattern, recurrence_days, enabled, last_executed_at, created_at`

// ScheduleRepo persists profile-push schedules.
type ScheduleRepo struct {
	DB *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{DB: db}
}

func scanSchedule(row interface{ Scan(...any) error }) (*models.Schedule, error) {
	s := &models.Schedule{}
	var days pq.Int64Array
	err := row.Scan(&s.ID, &s.Name, &s.ProfileID, &s.DeviceFilter, &s.ScheduleType,
		&s.StartTime, &s.EndTime, &s.RecurrencePattern, &days, &s.Enabled,
		&s.LastExecutedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		s.RecurrenceDays = append(s.RecurrenceDays, int(d))
	}
	return s, nil
}

// Count returns the total number of schedules.
func (r *ScheduleRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules").Scan(&n)
	return n, err
}

// List returns schedules, most recent first. limit/offset for pagination.
func (r *ScheduleRepo) List(ctx context.Context, limit, offset int) ([]models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// FindDue returns the schedules due at now, ordered by start_time ascending.
// Due means: enabled, never executed, and start_time inside (now-window, now].
// The window absorbs polling jitter; schedules whose start time scrolled past
// it are considered missed and need manual intervention.
//
// A query error is returned as-is. It must not be read as "nothing due".
func (r *ScheduleRepo) FindDue(ctx context.Context, now time.Time, window time.Duration) ([]models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND start_time <= $1
		  AND start_time > $2
		  AND last_executed_at IS NULL
		ORDER BY start_time ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, now, now.Add(-window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// GetByID returns one schedule by id, or nil if not found.
func (r *ScheduleRepo) GetByID(ctx context.Context, id int) (*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE id = $1
	`
	s, err := scanSchedule(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new schedule and returns it with id set.
func (r *ScheduleRepo) Create(ctx context.Context, s models.Schedule) (*models.Schedule, error) {
	query := `
		INSERT INTO schedules (name, profile_id, device_filter, schedule_type, start_time, end_time,
			recurrence_pattern, recurrence_days, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + scheduleColumns
	return scanSchedule(r.DB.QueryRowContext(ctx, query,
		s.Name, s.ProfileID, s.DeviceFilter, s.ScheduleType, s.StartTime, s.EndTime,
		s.RecurrencePattern, intArray(s.RecurrenceDays), s.Enabled,
	))
}

// Update replaces the UI-owned fields of a schedule. The executor-owned
// fields (start_time is shared: the UI may move a pending schedule, the
// executor advances it on recurrence) keep their dedicated methods below.
func (r *ScheduleRepo) Update(ctx context.Context, id int, s models.Schedule) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE schedules
		SET name = $1, profile_id = $2, device_filter = $3, schedule_type = $4, start_time = $5,
			end_time = $6, recurrence_pattern = $7, recurrence_days = $8, enabled = $9
		WHERE id = $10`,
		s.Name, s.ProfileID, s.DeviceFilter, s.ScheduleType, s.StartTime,
		s.EndTime, s.RecurrencePattern, intArray(s.RecurrenceDays), s.Enabled, id,
	)
	return err
}

// SetEnabled flips the enabled flag (cancellation is disable, never delete-by-executor).
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id int, enabled bool) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE schedules SET enabled = $1 WHERE id = $2`, enabled, id)
	return err
}

// MarkExecuted stamps last_executed_at for a one-time schedule that just ran.
func (r *ScheduleRepo) MarkExecuted(ctx context.Context, id int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET last_executed_at = $1 WHERE id = $2`, at, id)
	return err
}

// Reschedule advances a recurring schedule to its next occurrence and resets
// last_executed_at in the same statement. Keeping both in one update is what
// stops a recurring schedule from either sticking or re-firing every poll.
func (r *ScheduleRepo) Reschedule(ctx context.Context, id int, next time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET start_time = $1, last_executed_at = NULL WHERE id = $2`, next, id)
	return err
}

// Delete removes a schedule by id. Only the API layer calls this; the
// executor never deletes rows.
func (r *ScheduleRepo) Delete(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

func intArray(days []int) pq.Int64Array {
	if days == nil {
		return nil
	}
	out := make(pq.Int64Array, len(days))
	for i, d := range days {
		out[i] = int64(d)
	}
	return out
}
