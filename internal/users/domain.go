package users

import (
	"errors"
	"time"
)

// Known roles. Roles are flat strings; route guards name the roles they
// accept.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// User represents an account able to sign in to the back office.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ErrNotFound indicates a missing user.
var ErrNotFound = errors.New("users: not found")

// ErrEmailTaken indicates the email is already registered.
var ErrEmailTaken = errors.New("users: email already taken")
