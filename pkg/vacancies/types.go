// Package vacancies implements open positions on projects.
package vacancies

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a vacancy doesn't exist
	ErrNotFound = errors.New("vacancy not found")

	// ErrProjectNotFound is returned when the owning project doesn't exist
	ErrProjectNotFound = errors.New("project not found")
)

// Vacancy represents an open position on a project
type Vacancy struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateVacancyRequest holds the fields accepted when creating a vacancy
type CreateVacancyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateVacancyRequest holds partial updates to a vacancy
type UpdateVacancyRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublished *bool   `json:"is_published,omitempty"`
}
