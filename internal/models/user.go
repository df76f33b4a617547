package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles a user may hold.
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// User is an identity record in the user directory.
type User struct {
	ID           uuid.UUID `db:"id" json:"user_id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
