package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/crewhub/crewhub/pkg/observability"
	"github.com/crewhub/crewhub/pkg/perm"
)

// Service manages organizations using PostgreSQL
type Service struct {
	db        *sql.DB
	evaluator *perm.Evaluator
	logger    *observability.Logger
}

// NewService creates a new organization service
func NewService(db *sql.DB, evaluator *perm.Evaluator, logger *observability.Logger) *Service {
	return &Service{
		db:        db,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Create creates an organization. The creator becomes its first member
// and receives the EDIT_ORGANIZATION grant in the same transaction, so a
// failure leaves no organization without an editor.
func (s *Service) Create(ctx context.Context, creatorID int64, req *CreateOrgRequest) (*Organization, error) {
	org := &Organization{
		Name:           req.Name,
		Description:    req.Description,
		Visibility:     VisibilityClosed,
		ActivityStatus: ActivityInactive,
		JoinPolicy:     JoinPolicyClosed,
		CreatedBy:      creatorID,
	}
	if req.Visibility != nil {
		org.Visibility = *req.Visibility
	}
	if req.JoinPolicy != nil {
		org.JoinPolicy = *req.JoinPolicy
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name, description, visibility, activity_status, join_policy, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		org.Name, org.Description, string(org.Visibility), string(org.ActivityStatus),
		string(org.JoinPolicy), org.CreatedBy,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id) VALUES ($1, $2)`,
		org.ID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to add creator as member: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permissions (user_id, resource_type, resource_id, permission_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, resource_type, resource_id, permission_type) DO NOTHING`,
		creatorID, string(perm.ResourceOrganization), org.ID, string(perm.PermEditOrganization))
	if err != nil {
		return nil, fmt.Errorf("failed to grant edit permission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Re-issue through the grant store so a cached negative lookup from
	// before creation doesn't mask the new grant.
	if _, err := s.evaluator.AllowEditOrganization(ctx, creatorID, org.ID); err != nil {
		s.logger.WithError(err).Warn("failed to refresh grant cache after org creation")
	}

	s.logger.WithFields(map[string]interface{}{
		"org_id":  org.ID,
		"user_id": creatorID,
	}).Info("organization created")

	return org, nil
}

// Get retrieves an organization by ID
func (s *Service) Get(ctx context.Context, id int64) (*Organization, error) {
	org := &Organization{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, visibility, activity_status, join_policy, created_by, created_at, updated_at
		FROM organizations WHERE id = $1`, id,
	).Scan(
		&org.ID, &org.Name, &org.Description, &org.Visibility, &org.ActivityStatus,
		&org.JoinPolicy, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListForUser lists the organizations a user is a member of
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.name, o.description, o.visibility, o.activity_status, o.join_policy,
		       o.created_by, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members om ON o.id = om.organization_id
		WHERE om.user_id = $1
		ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(
			&org.ID, &org.Name, &org.Description, &org.Visibility, &org.ActivityStatus,
			&org.JoinPolicy, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// ListOpen lists organizations that are open to view by anyone
func (s *Service) ListOpen(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, visibility, activity_status, join_policy, created_by, created_at, updated_at
		FROM organizations
		WHERE visibility = $1 AND join_policy = $2
		ORDER BY created_at DESC`,
		string(VisibilityOpen), string(JoinPolicyOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to list open organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(
			&org.ID, &org.Name, &org.Description, &org.Visibility, &org.ActivityStatus,
			&org.JoinPolicy, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// Update applies partial updates to an organization and drops its cached
// visibility facts so permission checks see the change
func (s *Service) Update(ctx context.Context, id int64, updates *UpdateOrgRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *updates.Description)
		argPos++
	}
	if updates.Visibility != nil {
		setClauses = append(setClauses, fmt.Sprintf("visibility = $%d", argPos))
		args = append(args, string(*updates.Visibility))
		argPos++
	}
	if updates.JoinPolicy != nil {
		setClauses = append(setClauses, fmt.Sprintf("join_policy = $%d", argPos))
		args = append(args, string(*updates.JoinPolicy))
		argPos++
	}
	if updates.ActivityStatus != nil {
		setClauses = append(setClauses, fmt.Sprintf("activity_status = $%d", argPos))
		args = append(args, string(*updates.ActivityStatus))
		argPos++
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.evaluator.InvalidateOrganizationFacts(id)
	return nil
}

// Delete removes an organization. Projects, vacancies, applications,
// memberships, and join codes go with it via foreign keys.
func (s *Service) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.evaluator.InvalidateOrganizationFacts(id)
	return nil
}
