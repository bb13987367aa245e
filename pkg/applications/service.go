package applications

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crewhub/crewhub/pkg/observability"
)

// Service manages vacancy applications using PostgreSQL
type Service struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewService creates a new application service
func NewService(db *sql.DB, logger *observability.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Apply submits an application to a published vacancy. A user may hold
// at most one application per vacancy.
func (s *Service) Apply(ctx context.Context, vacancyID, userID int64, message string) (*Application, error) {
	var isPublished bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_published FROM vacancies WHERE id = $1`, vacancyID).Scan(&isPublished)
	if err == sql.ErrNoRows {
		return nil, ErrVacancyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check vacancy: %w", err)
	}
	if !isPublished {
		return nil, ErrVacancyUnpublished
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM applications WHERE vacancy_id = $1 AND user_id = $2
		)`, vacancyID, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing application: %w", err)
	}
	if exists {
		return nil, ErrAlreadyApplied
	}

	app := &Application{
		VacancyID: vacancyID,
		UserID:    userID,
		Message:   message,
		Status:    StatusPending,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO applications (vacancy_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, status, created_at`,
		app.VacancyID, app.UserID, app.Message,
	).Scan(&app.ID, &app.Status, &app.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"application_id": app.ID,
		"vacancy_id":     vacancyID,
		"user_id":        userID,
	}).Info("application submitted")

	return app, nil
}

// Get retrieves an application by ID
func (s *Service) Get(ctx context.Context, id int64) (*Application, error) {
	app := &Application{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, vacancy_id, user_id, message, status, created_at
		FROM applications WHERE id = $1`, id,
	).Scan(&app.ID, &app.VacancyID, &app.UserID, &app.Message, &app.Status, &app.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListForVacancy lists a vacancy's applications
func (s *Service) ListForVacancy(ctx context.Context, vacancyID int64) ([]*Application, error) {
	return s.list(ctx, `
		SELECT id, vacancy_id, user_id, message, status, created_at
		FROM applications
		WHERE vacancy_id = $1
		ORDER BY created_at ASC`, vacancyID)
}

// ListForUser lists a user's applications
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*Application, error) {
	return s.list(ctx, `
		SELECT id, vacancy_id, user_id, message, status, created_at
		FROM applications
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

func (s *Service) list(ctx context.Context, query string, arg int64) ([]*Application, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		app := &Application{}
		if err := rows.Scan(&app.ID, &app.VacancyID, &app.UserID, &app.Message, &app.Status, &app.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

// UpdateStatus moves an application to a new review state
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE applications SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
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

// Withdraw deletes an application
func (s *Service) Withdraw(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to withdraw application: %w", err)
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
