package models

import (
	"time"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	PasswordSalt string    `json:"-" db:"password_salt"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Assignable reports whether work can be assigned to the user.
func (u *User) Assignable() bool {
	return u != nil && u.IsActive && !u.IsAdmin
}

// Principal identifies the caller of an operation.
type Principal struct {
	UserID  string
	IsAdmin bool
}
