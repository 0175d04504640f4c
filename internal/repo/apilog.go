package repo

import (
	"context"
	"database/sql"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

// APILogRepo persists the append-only SimpleMDM call log. Rows are never
// updated after insert; the executor writes them for postmortems only.
type APILogRepo struct {
	db *sql.DB
}

// NewAPILogRepo returns a new APILogRepo.
func NewAPILogRepo(db *sql.DB) *APILogRepo {
	return &APILogRepo{db: db}
}

// Insert appends one call log entry.
func (r *APILogRepo) Insert(ctx context.Context, e models.APILogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO simplemdm_api_logs
			(schedule_id, action_type, profile_id, device_id, request_method, request_url,
			 response_status, response_body, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ScheduleID, e.ActionType, e.ProfileID, e.DeviceID, e.RequestMethod, e.RequestURL,
		e.ResponseStatus, nullString(e.ResponseBody), e.Success, nullString(e.ErrorMessage),
	)
	return err
}

// List returns recent log entries, newest first.
func (r *APILogRepo) List(ctx context.Context, limit, offset int) ([]models.APILogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_id, action_type, profile_id, device_id, request_method, request_url,
			response_status, COALESCE(response_body,''), success, COALESCE(error_message,''), created_at
		FROM simplemdm_api_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.APILogEntry
	for rows.Next() {
		var e models.APILogEntry
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.ActionType, &e.ProfileID, &e.DeviceID,
			&e.RequestMethod, &e.RequestURL, &e.ResponseStatus, &e.ResponseBody,
			&e.Success, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
