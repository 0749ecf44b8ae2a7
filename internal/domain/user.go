package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles recognized by the system.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// ValidRole reports whether r is a recognized role.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleCashier
}

// User is an operator of the register. Every committed sale is attributed
// to the user that recorded it.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RefreshToken is a long-lived credential exchanged for new access tokens.
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}
