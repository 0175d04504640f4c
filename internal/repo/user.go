package repo

import (
	"context"
	"database/sql"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

// UserRepo persists dashboard operators. Admin-role lookups come from here.
type UserRepo struct {
	DB *sql.DB
}

// NewUserRepo returns a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

// Create inserts a user. passwordHash may be empty for viewer accounts.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash, role string) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, username, COALESCE(password_hash,''), role
	`
	user := &models.User{}
	err := r.DB.QueryRowContext(ctx, query, username, nullString(passwordHash), role).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByUsername returns one user by username, or nil if not found.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, COALESCE(password_hash,''), role
		FROM users
		WHERE username = $1
	`
	user := &models.User{}
	err := r.DB.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// IsAdmin reports whether the user id carries the admin role.
func (r *UserRepo) IsAdmin(ctx context.Context, id int) (bool, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}
