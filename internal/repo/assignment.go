package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDuplicateActive is returned when an active assignment already exists for
// the (profile, device) pair. The check lives in the SQL function so it shares
// a statement with the insert.
var ErrDuplicateActive = errors.New("active assignment already exists for this profile and device")

const assignmentColumns = `id, profile_id, device_id, install_at, remove_at, status,
		COALESCE(error,''), created_at, updated_at`

// AssignmentRepo persists quick (temporary) profile assignments. Creation,
// cancellation, and listing go through the RPC-style SQL functions the
// dashboard also uses, so both callers share one contract.
type AssignmentRepo struct {
	db *sql.DB
}

// NewAssignmentRepo returns a new AssignmentRepo.
func NewAssignmentRepo(db *sql.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// Create inserts a new assignment with status=scheduled via
// create_quick_profile_assignment and returns its id.
func (r *AssignmentRepo) Create(ctx context.Context, profileID, deviceID int, removeAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	var returned uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT create_quick_profile_assignment($1, $2, $3, $4)`,
		id, profileID, deviceID, removeAt,
	).Scan(&returned)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "P0001" {
			return uuid.Nil, ErrDuplicateActive
		}
		return uuid.Nil, err
	}
	return returned, nil
}

// Cancel marks an active assignment removed via cancel_quick_profile_assignment.
// It returns false when the assignment was not active (already removed/failed
// or unknown), which callers treat as an idempotent no-op.
func (r *AssignmentRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	var status sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT cancel_quick_profile_assignment($1)`, id,
	).Scan(&status)
	if err != nil {
		return false, err
	}
	return status.Valid, nil
}

// List returns assignments, newest first, via get_quick_profile_assignments.
func (r *AssignmentRepo) List(ctx context.Context, limit, offset int) ([]models.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, device_id, install_at, remove_at, status,
			COALESCE(error,''), created_at, updated_at
		FROM get_quick_profile_assignments($1, $2)`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// GetByID returns one assignment, or nil if not found.
func (r *AssignmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM quick_profile_assignments
		WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetStatus records a transition out of scheduled (installed or failed).
// errMsg is stored for failed transitions and ignored when empty.
func (r *AssignmentRepo) SetStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE quick_profile_assignments
		SET status = $1, error = $2, updated_at = now()
		WHERE id = $3`,
		status, nullString(errMsg), id,
	)
	return err
}

// FindExpired returns installed assignments whose remove_at has passed. The
// reaper removes these on its next pass.
func (r *AssignmentRepo) FindExpired(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM quick_profile_assignments
		WHERE status = 'installed' AND remove_at <= $1
		ORDER BY remove_at ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// MarkRemoved transitions installed -> removed. The status guard in the WHERE
// clause keeps removal idempotent: only one in-flight removal per assignment
// can win.
func (r *AssignmentRepo) MarkRemoved(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quick_profile_assignments
		SET status = 'removed', updated_at = now()
		WHERE id = $1 AND status = 'installed'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanAssignment(row interface{ Scan(...any) error }) (*models.Assignment, error) {
	a := &models.Assignment{}
	err := row.Scan(&a.ID, &a.ProfileID, &a.DeviceID, &a.InstallAt, &a.RemoveAt,
		&a.Status, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
