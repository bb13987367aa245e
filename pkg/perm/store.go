package perm

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store over database/sql
type PostgresStore struct {
	db *sql.DB
}

// NewStore creates a new grant store
func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindGrant looks up an exact grant tuple. Returns (nil, nil) when absent.
func (s *PostgresStore) FindGrant(ctx context.Context, key GrantKey) (*Grant, error) {
	query := `
		SELECT id, user_id, resource_type, resource_id, permission_type, created_at
		FROM permissions
		WHERE user_id = $1 AND resource_type = $2 AND resource_id = $3 AND permission_type = $4
	`

	var grant Grant
	err := s.db.QueryRowContext(ctx, query,
		key.UserID, string(key.ResourceType), key.ResourceID, string(key.PermissionType),
	).Scan(
		&grant.ID,
		&grant.UserID,
		&grant.ResourceType,
		&grant.ResourceID,
		&grant.PermissionType,
		&grant.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find grant: %w", err)
	}

	return &grant, nil
}

// CreateGrant inserts a grant tuple, returning the existing row if one is
// already present. The unique index makes concurrent creation safe: the
// insert is a no-op on conflict and the follow-up select observes whichever
// insert won.
func (s *PostgresStore) CreateGrant(ctx context.Context, key GrantKey) (*Grant, error) {
	query := `
		INSERT INTO permissions (user_id, resource_type, resource_id, permission_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, resource_type, resource_id, permission_type) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		key.UserID, string(key.ResourceType), key.ResourceID, string(key.PermissionType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant: %w", err)
	}

	grant, err := s.FindGrant(ctx, key)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, fmt.Errorf("grant missing after insert")
	}

	return grant, nil
}

// DeleteGrant removes an exact grant tuple if present
func (s *PostgresStore) DeleteGrant(ctx context.Context, key GrantKey) error {
	query := `
		DELETE FROM permissions
		WHERE user_id = $1 AND resource_type = $2 AND resource_id = $3 AND permission_type = $4
	`

	_, err := s.db.ExecContext(ctx, query,
		key.UserID, string(key.ResourceType), key.ResourceID, string(key.PermissionType),
	)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// DeleteOrganizationGrants removes all of a user's grants scoped to an
// organization, inside tx when one is given.
func (s *PostgresStore) DeleteOrganizationGrants(ctx context.Context, tx *sql.Tx, userID, orgID int64) error {
	query := `
		DELETE FROM permissions
		WHERE user_id = $1 AND resource_type = $2 AND resource_id = $3
	`

	var exec interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	} = s.db
	if tx != nil {
		exec = tx
	}

	_, err := exec.ExecContext(ctx, query, userID, string(ResourceOrganization), orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization grants: %w", err)
	}
	return nil
}

// ListUserGrants returns all grants held by a user
func (s *PostgresStore) ListUserGrants(ctx context.Context, userID int64) ([]Grant, error) {
	query := `
		SELECT id, user_id, resource_type, resource_id, permission_type, created_at
		FROM permissions
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var grant Grant
		err := rows.Scan(
			&grant.ID,
			&grant.UserID,
			&grant.ResourceType,
			&grant.ResourceID,
			&grant.PermissionType,
			&grant.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}

	return grants, rows.Err()
}
