package orgs

import (
	"context"
	"time"

	"github.com/crewhub/crewhub/pkg/observability"
)

// StartMetricsLoop periodically exports organization and membership
// counts as gauges until ctx is cancelled.
func (s *Service) StartMetricsLoop(ctx context.Context, metrics *observability.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportCounts(ctx, metrics)
		}
	}
}

func (s *Service) exportCounts(ctx context.Context, metrics *observability.Metrics) {
	var orgCount, memberCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&orgCount); err != nil {
		s.logger.WithError(err).Warn("failed to count organizations")
		return
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organization_members`).Scan(&memberCount); err != nil {
		s.logger.WithError(err).Warn("failed to count memberships")
		return
	}
	metrics.OrganizationsTotal.Set(float64(orgCount))
	metrics.MembershipsTotal.Set(float64(memberCount))
}
