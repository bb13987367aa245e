// Package perm implements permission grants and the permission evaluator.
//
// A grant is an exact (user, resource_type, resource_id, permission_type)
// tuple. The evaluator combines grant lookups with resource facts
// (organization visibility, membership, project ownership) to answer
// authorization questions. Evaluation is deny-by-default: a missing
// resource or missing grant yields false, never an error.
package perm

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ResourceType identifies the kind of resource a grant applies to
type ResourceType string

const (
	ResourceOrganization ResourceType = "ORGANIZATION"
	ResourceProject      ResourceType = "PROJECT"
	ResourceVacancy      ResourceType = "VACANCY"

	// ResourceDomain is the application-wide scope. Domain grants carry
	// the holder's own user ID as resource_id.
	ResourceDomain ResourceType = "DOMAIN"
)

// PermissionType identifies the action a grant allows
type PermissionType string

const (
	PermEditOrganization    PermissionType = "EDIT_ORGANIZATION"
	PermDeleteOrgMembers    PermissionType = "DELETE_ORGANIZATION_MEMBERS"
	PermCreateProjectsInOrg PermissionType = "CREATE_PROJECTS_INSIDE_ORGANIZATION"
	PermEditProject         PermissionType = "EDIT_PROJECT"
	PermEditVacancy         PermissionType = "EDIT_VACANCY"
	PermAdmin               PermissionType = "ADMIN"
	PermCreateOrganization  PermissionType = "CREATE_ORGANIZATION"
)

// permissionTypes enumerates every PermissionType value, for callers
// that must cover the full grant tuple space of a resource.
var permissionTypes = []PermissionType{
	PermEditOrganization,
	PermDeleteOrgMembers,
	PermCreateProjectsInOrg,
	PermEditProject,
	PermEditVacancy,
	PermAdmin,
	PermCreateOrganization,
}

var (
	// ErrDenied is returned by RequireAll when any check fails
	ErrDenied = errors.New("permission denied")

	// ErrNotFound is returned when a referenced resource doesn't exist
	ErrNotFound = errors.New("resource not found")
)

// Grant is a single permission tuple. The store enforces uniqueness over
// (user_id, resource_type, resource_id, permission_type).
type Grant struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	ResourceType   ResourceType   `json:"resource_type"`
	ResourceID     int64          `json:"resource_id"`
	PermissionType PermissionType `json:"permission_type"`
	CreatedAt      time.Time      `json:"created_at"`
}

// GrantKey identifies a grant tuple without its row metadata
type GrantKey struct {
	UserID         int64          `json:"user_id"`
	ResourceType   ResourceType   `json:"resource_type"`
	ResourceID     int64          `json:"resource_id"`
	PermissionType PermissionType `json:"permission_type"`
}

// Store persists permission grants
type Store interface {
	// FindGrant looks up an exact grant tuple. Returns (nil, nil) when absent.
	FindGrant(ctx context.Context, key GrantKey) (*Grant, error)

	// CreateGrant inserts a grant, returning the existing row if the
	// tuple is already present. Idempotent.
	CreateGrant(ctx context.Context, key GrantKey) (*Grant, error)

	// DeleteGrant removes an exact grant tuple if present
	DeleteGrant(ctx context.Context, key GrantKey) error

	// DeleteOrganizationGrants removes all of a user's grants scoped to
	// an organization. A non-nil tx scopes the delete to the caller's
	// transaction so it commits or rolls back with the rest of a
	// membership-removal cascade.
	DeleteOrganizationGrants(ctx context.Context, tx *sql.Tx, userID, orgID int64) error

	// ListUserGrants returns all grants held by a user
	ListUserGrants(ctx context.Context, userID int64) ([]Grant, error)
}
