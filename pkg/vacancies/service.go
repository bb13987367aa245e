package vacancies

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/crewhub/crewhub/pkg/observability"
	"github.com/crewhub/crewhub/pkg/perm"
)

// Service manages vacancies using PostgreSQL
type Service struct {
	db        *sql.DB
	evaluator *perm.Evaluator
	logger    *observability.Logger
}

// NewService creates a new vacancy service
func NewService(db *sql.DB, evaluator *perm.Evaluator, logger *observability.Logger) *Service {
	return &Service{
		db:        db,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Create creates a vacancy on a project. The creator receives the
// vacancy's EDIT_VACANCY grant. New vacancies start unpublished.
func (s *Service) Create(ctx context.Context, projectID, creatorID int64, req *CreateVacancyRequest) (*Vacancy, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check project: %w", err)
	}
	if !exists {
		return nil, ErrProjectNotFound
	}

	vacancy := &Vacancy{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO vacancies (project_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING id, is_published, created_at, updated_at`,
		vacancy.ProjectID, vacancy.Title, vacancy.Description,
	).Scan(&vacancy.ID, &vacancy.IsPublished, &vacancy.CreatedAt, &vacancy.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create vacancy: %w", err)
	}

	if _, err := s.evaluator.AllowEditVacancy(ctx, creatorID, vacancy.ID); err != nil {
		return nil, fmt.Errorf("failed to grant edit permission: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"vacancy_id": vacancy.ID,
		"project_id": projectID,
		"user_id":    creatorID,
	}).Info("vacancy created")

	return vacancy, nil
}

// Get retrieves a vacancy by ID
func (s *Service) Get(ctx context.Context, id int64) (*Vacancy, error) {
	vacancy := &Vacancy{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, is_published, created_at, updated_at
		FROM vacancies WHERE id = $1`, id,
	).Scan(
		&vacancy.ID, &vacancy.ProjectID, &vacancy.Title, &vacancy.Description,
		&vacancy.IsPublished, &vacancy.CreatedAt, &vacancy.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vacancy: %w", err)
	}
	return vacancy, nil
}

// ListByProject lists a project's vacancies. When publishedOnly is set,
// unpublished vacancies are filtered out.
func (s *Service) ListByProject(ctx context.Context, projectID int64, publishedOnly bool) ([]*Vacancy, error) {
	query := `
		SELECT id, project_id, title, description, is_published, created_at, updated_at
		FROM vacancies
		WHERE project_id = $1`
	if publishedOnly {
		query += ` AND is_published = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vacancies: %w", err)
	}
	defer rows.Close()

	var vacancies []*Vacancy
	for rows.Next() {
		vacancy := &Vacancy{}
		if err := rows.Scan(
			&vacancy.ID, &vacancy.ProjectID, &vacancy.Title, &vacancy.Description,
			&vacancy.IsPublished, &vacancy.CreatedAt, &vacancy.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vacancy: %w", err)
		}
		vacancies = append(vacancies, vacancy)
	}

	return vacancies, rows.Err()
}

// Update applies partial updates to a vacancy, including publish state
func (s *Service) Update(ctx context.Context, id int64, updates *UpdateVacancyRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Title != nil {
		setClauses = append(setClauses, fmt.Sprintf("title = $%d", argPos))
		args = append(args, *updates.Title)
		argPos++
	}
	if updates.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *updates.Description)
		argPos++
	}
	if updates.IsPublished != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_published = $%d", argPos))
		args = append(args, *updates.IsPublished)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE vacancies SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update vacancy: %w", err)
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

// Delete removes a vacancy and its applications
func (s *Service) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM vacancies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vacancy: %w", err)
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
