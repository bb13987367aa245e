package projects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/crewhub/crewhub/pkg/observability"
	"github.com/crewhub/crewhub/pkg/perm"
)

// Service manages projects using PostgreSQL
type Service struct {
	db        *sql.DB
	evaluator *perm.Evaluator
	logger    *observability.Logger
}

// NewService creates a new project service
func NewService(db *sql.DB, evaluator *perm.Evaluator, logger *observability.Logger) *Service {
	return &Service{
		db:        db,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Create creates a project inside an organization. The creator receives
// the project's EDIT_PROJECT grant.
func (s *Service) Create(ctx context.Context, orgID, creatorID int64, req *CreateProjectRequest) (*Project, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM organizations WHERE id = $1)`, orgID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check organization: %w", err)
	}
	if !exists {
		return nil, ErrOrgNotFound
	}

	project := &Project{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		Visibility:     VisibilityOpen,
	}
	if req.Visibility != nil {
		project.Visibility = *req.Visibility
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO projects (organization_id, name, description, visibility)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		project.OrganizationID, project.Name, project.Description, string(project.Visibility),
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if _, err := s.evaluator.AllowEditProject(ctx, creatorID, project.ID); err != nil {
		return nil, fmt.Errorf("failed to grant edit permission: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"project_id": project.ID,
		"org_id":     orgID,
		"user_id":    creatorID,
	}).Info("project created")

	return project, nil
}

// Get retrieves a project by ID
func (s *Service) Get(ctx context.Context, id int64) (*Project, error) {
	project := &Project{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, description, visibility, created_at, updated_at
		FROM projects WHERE id = $1`, id,
	).Scan(
		&project.ID, &project.OrganizationID, &project.Name, &project.Description,
		&project.Visibility, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListByOrganization lists an organization's projects
func (s *Service) ListByOrganization(ctx context.Context, orgID int64) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, name, description, visibility, created_at, updated_at
		FROM projects
		WHERE organization_id = $1
		ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project := &Project{}
		if err := rows.Scan(
			&project.ID, &project.OrganizationID, &project.Name, &project.Description,
			&project.Visibility, &project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// Update applies partial updates to a project
func (s *Service) Update(ctx context.Context, id int64, updates *UpdateProjectRequest) error {
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

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a project and its vacancies
func (s *Service) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
