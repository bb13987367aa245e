// Package auth provides user accounts and JWT-based authentication.
package auth

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when a user doesn't exist
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering with an existing email
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidToken is returned when a JWT fails validation
	ErrInvalidToken = errors.New("invalid or expired token")
)

// User represents a user account
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// PasswordHash is never serialized
	PasswordHash string `json:"-"`
}

// Session holds the authenticated identity attached to a request context
type Session struct {
	UserID int64
	Email  string
}
