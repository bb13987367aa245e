// Package orgs implements organizations, memberships, and join codes.
package orgs

import (
	"errors"
	"time"
)

// Visibility controls who can see an organization
type Visibility string

const (
	VisibilityOpen   Visibility = "OPEN"
	VisibilityClosed Visibility = "CLOSED"
)

// JoinPolicy controls how users become members
type JoinPolicy string

const (
	JoinPolicyOpen   JoinPolicy = "OPEN"   // Anyone can join
	JoinPolicyInvite JoinPolicy = "INVITE" // Members are invited
	JoinPolicyClosed JoinPolicy = "CLOSED" // Nobody can join
	JoinPolicyCode   JoinPolicy = "CODE"   // Join with a code
)

// ActivityStatus marks whether an organization is operating
type ActivityStatus string

const (
	ActivityActive   ActivityStatus = "ACTIVE"
	ActivityInactive ActivityStatus = "INACTIVE"
)

var (
	// ErrNotFound is returned when an organization doesn't exist
	ErrNotFound = errors.New("organization not found")

	// ErrAlreadyMember is returned when adding an existing member
	ErrAlreadyMember = errors.New("user is already a member")

	// ErrJoinClosed is returned when the join policy forbids self-joining
	ErrJoinClosed = errors.New("organization is not open for joining")

	// ErrInvalidJoinCode is returned for unknown or expired join codes
	ErrInvalidJoinCode = errors.New("invalid or expired join code")
)

// Organization represents an organization
type Organization struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Visibility     Visibility     `json:"visibility"`
	ActivityStatus ActivityStatus `json:"activity_status"`
	JoinPolicy     JoinPolicy     `json:"join_policy"`
	CreatedBy      int64          `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Member represents a user's membership in an organization
type Member struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	UserID         int64     `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// JoinCode is a time-limited code for joining an organization
type JoinCode struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Code           string    `json:"code"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateOrgRequest holds the fields accepted when creating an organization
type CreateOrgRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Visibility  *Visibility `json:"visibility,omitempty"`
	JoinPolicy  *JoinPolicy `json:"join_policy,omitempty"`
}

// UpdateOrgRequest holds partial updates to an organization
type UpdateOrgRequest struct {
	Name           *string         `json:"name,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Visibility     *Visibility     `json:"visibility,omitempty"`
	JoinPolicy     *JoinPolicy     `json:"join_policy,omitempty"`
	ActivityStatus *ActivityStatus `json:"activity_status,omitempty"`
}
