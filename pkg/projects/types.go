// Package projects implements projects inside organizations.
package projects

import (
	"errors"
	"time"
)

// Visibility controls who can see a project
type Visibility string

const (
	VisibilityOpen   Visibility = "OPEN"
	VisibilityClosed Visibility = "CLOSED"
)

var (
	// ErrNotFound is returned when a project doesn't exist
	ErrNotFound = errors.New("project not found")

	// ErrOrgNotFound is returned when the owning organization doesn't exist
	ErrOrgNotFound = errors.New("organization not found")
)

// Project represents a project inside an organization
type Project struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Visibility     Visibility `json:"visibility"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateProjectRequest holds the fields accepted when creating a project
type CreateProjectRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

// UpdateProjectRequest holds partial updates to a project
type UpdateProjectRequest struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}
