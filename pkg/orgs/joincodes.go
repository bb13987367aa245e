package orgs

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crewhub/crewhub/pkg/observability"
)

// Join adds the user to an organization whose join policy is OPEN.
// Organizations with INVITE, CODE, or CLOSED policies reject self-joins.
func (s *Service) Join(ctx context.Context, orgID, userID int64) (*Member, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.JoinPolicy != JoinPolicyOpen {
		return nil, ErrJoinClosed
	}
	return s.AddMember(ctx, orgID, userID)
}

// CreateJoinCode issues a time-limited join code for an organization
func (s *Service) CreateJoinCode(ctx context.Context, orgID int64, ttl time.Duration) (*JoinCode, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate join code: %w", err)
	}

	jc := &JoinCode{
		OrganizationID: orgID,
		Code:           code,
		ExpiresAt:      time.Now().Add(ttl).UTC(),
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO org_join_codes (organization_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		jc.OrganizationID, jc.Code, jc.ExpiresAt,
	).Scan(&jc.ID, &jc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create join code: %w", err)
	}

	return jc, nil
}

// JoinWithCode redeems a join code. The code must exist, be unexpired,
// and belong to an organization whose join policy is CODE.
func (s *Service) JoinWithCode(ctx context.Context, code string, userID int64) (*Member, error) {
	var orgID int64
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT organization_id, expires_at FROM org_join_codes WHERE code = $1`, code,
	).Scan(&orgID, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidJoinCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up join code: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, ErrInvalidJoinCode
	}

	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.JoinPolicy != JoinPolicyCode {
		return nil, ErrJoinClosed
	}

	return s.AddMember(ctx, orgID, userID)
}

// CleanupExpiredJoinCodes deletes join codes past their expiry and
// returns how many were removed
func (s *Service) CleanupExpiredJoinCodes(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM org_join_codes WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up join codes: %w", err)
	}
	return result.RowsAffected()
}

// ScheduleJoinCodeCleanup registers the expired-code cleanup job on a
// cron scheduler
func (s *Service) ScheduleJoinCodeCleanup(c *cron.Cron, schedule string, logger *observability.Logger) error {
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		removed, err := s.CleanupExpiredJoinCodes(ctx)
		if err != nil {
			logger.WithError(err).Error("join code cleanup failed")
			return
		}
		if removed > 0 {
			logger.WithField("removed", removed).Info("expired join codes cleaned up")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule join code cleanup: %w", err)
	}
	return nil
}

// generateCode generates a random join code
func generateCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
