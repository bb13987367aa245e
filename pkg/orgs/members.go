package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// AddMember adds a user to an organization
func (s *Service) AddMember(ctx context.Context, orgID, userID int64) (*Member, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return nil, err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2
		)`, orgID, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if exists {
		return nil, ErrAlreadyMember
	}

	member := &Member{OrganizationID: orgID, UserID: userID}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		orgID, userID,
	).Scan(&member.ID, &member.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return member, nil
}

// ListMembers lists an organization's members
func (s *Service) ListMembers(ctx context.Context, orgID int64) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, user_id, created_at
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY created_at ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(&member.ID, &member.OrganizationID, &member.UserID, &member.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// IsMember reports whether a user belongs to an organization
func (s *Service) IsMember(ctx context.Context, orgID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2
		)`, orgID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// RemoveMember removes a user from an organization. Removing a
// non-member is an idempotent no-op. The membership, the user's pending
// applications, and their grants on the organization are deleted in one
// transaction, so a failure anywhere leaves all three intact. Pending
// applications are removed repository-wide, not just those inside this
// organization.
func (s *Service) RemoveMember(ctx context.Context, orgID, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Removing a non-member is a no-op, not an error
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM applications WHERE user_id = $1 AND status = 'PENDING'`, userID); err != nil {
		return fmt.Errorf("failed to delete applications: %w", err)
	}

	if err := s.evaluator.RevokeOrganizationGrants(ctx, tx, userID, orgID); err != nil {
		return fmt.Errorf("failed to revoke organization grants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Rows were visible until commit, so purge cached grant entries now
	// that the delete is durable.
	s.evaluator.InvalidateOrganizationGrantCache(ctx, userID, orgID)

	s.logger.WithFields(map[string]interface{}{
		"org_id":  orgID,
		"user_id": userID,
	}).Info("member removed")

	return nil
}

// CountMembers returns the number of members in an organization
func (s *Service) CountMembers(ctx context.Context, orgID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organization_members WHERE organization_id = $1`, orgID,
	).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}
