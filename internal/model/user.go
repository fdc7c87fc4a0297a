package model

import "time"

// Role is the privilege level carried in access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User represents a profile record as stored in the `users` table.  A
// profile is created the first time someone signs in with LINE and is
// refreshed with the display name, picture and email LINE reports on
// every later sign-in.
//
// Fields:
//
//	ID          – primary key (UUID).
//	LineUserID  – LINE subject identifier; unique when present.
//	DisplayName – name shown in the admin console and emails.
//	PictureURL  – LINE avatar URL (nullable).
//	Email       – address used for reservation emails (nullable).
//	Role        – user or admin.
//	CreatedAt   – timestamp of creation.
//	UpdatedAt   – timestamp of last update.
type User struct {
	ID          string    `db:"id" json:"id"`
	LineUserID  *string   `db:"line_user_id" json:"line_user_id,omitempty"`
	DisplayName string    `db:"display_name" json:"display_name"`
	PictureURL  *string   `db:"picture_url" json:"picture_url,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Role        Role      `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
