// Package applications implements vacancy applications.
package applications

import (
	"errors"
	"time"
)

// Status is the review state of an application
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

var (
	// ErrNotFound is returned when an application doesn't exist
	ErrNotFound = errors.New("application not found")

	// ErrVacancyNotFound is returned when the vacancy doesn't exist
	ErrVacancyNotFound = errors.New("vacancy not found")

	// ErrVacancyUnpublished is returned when applying to an unpublished vacancy
	ErrVacancyUnpublished = errors.New("vacancy is not published")

	// ErrAlreadyApplied is returned when a user applies to the same vacancy twice
	ErrAlreadyApplied = errors.New("user has already applied to this vacancy")
)

// Application represents a user's application to a vacancy
type Application struct {
	ID        int64     `json:"id"`
	VacancyID int64     `json:"vacancy_id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
