package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

const userColumns = `id, line_user_id, display_name, picture_url, email, role, created_at, updated_at`

// UserRepo provides access to the users (profiles) table.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// LineProfile is what a LINE sign-in tells us about the person.
type LineProfile struct {
	LineUserID  string
	DisplayName string
	PictureURL  string
	Email       string
}

// UpsertByLineID creates the profile on first sign-in and refreshes its
// name, picture and email afterwards.  promote upgrades the role to admin
// but never downgrades an existing admin.
func (r *UserRepo) UpsertByLineID(ctx context.Context, p LineProfile, promote bool) (*model.User, error) {
	role := model.RoleUser
	if promote {
		role = model.RoleAdmin
	}
	now := time.Now().UTC()
	const q = `INSERT INTO users (id, line_user_id, display_name, picture_url, email, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			display_name = VALUES(display_name),
			picture_url  = COALESCE(VALUES(picture_url), picture_url),
			email        = COALESCE(VALUES(email), email),
			role         = IF(VALUES(role) = 'admin', 'admin', role),
			updated_at   = VALUES(updated_at)`
	_, err := r.db.ExecContext(ctx, q,
		uuid.NewString(), p.LineUserID, p.DisplayName, nullable(p.PictureURL), nullable(p.Email), role, now, now)
	if err != nil {
		return nil, translate(err)
	}
	return r.GetByLineID(ctx, p.LineUserID)
}

// GetByLineID fetches a profile by LINE subject.
func (r *UserRepo) GetByLineID(ctx context.Context, lineUserID string) (*model.User, error) {
	var u model.User
	if err := r.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE line_user_id = ? LIMIT 1", lineUserID); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetByID fetches a profile by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Count returns the number of profiles.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
	return n, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
