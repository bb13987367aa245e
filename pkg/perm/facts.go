package perm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Visibility values as stored. Kept as raw strings here so the evaluator
// doesn't depend on the domain packages that depend on it.
const (
	factOpen   = "OPEN"
	factActive = "ACTIVE"
)

// orgFacts are the organization attributes permission checks depend on
type orgFacts struct {
	Visibility     string
	JoinPolicy     string
	ActivityStatus string
}

// OpenToView reports whether the organization is visible to everyone:
// both its join policy and visibility must be OPEN.
func (f orgFacts) OpenToView() bool {
	return f.JoinPolicy == factOpen && f.Visibility == factOpen
}

// projectFacts are the project attributes permission checks depend on
type projectFacts struct {
	OrganizationID int64
	Visibility     string
}

// factSource answers resource-existence and attribute questions for the
// evaluator. Organization lookups sit on every read path, so they run
// through a small expiring LRU; the TTL bounds how stale a visibility
// change can be observed.
type factSource struct {
	db       *sql.DB
	orgCache *expirable.LRU[int64, orgFacts]
}

func newFactSource(db *sql.DB, cacheSize int, cacheTTL time.Duration) *factSource {
	var cache *expirable.LRU[int64, orgFacts]
	if cacheSize > 0 {
		cache = expirable.NewLRU[int64, orgFacts](cacheSize, nil, cacheTTL)
	}
	return &factSource{db: db, orgCache: cache}
}

// Organization returns org facts, or (zero, false, nil) when the org
// doesn't exist.
func (f *factSource) Organization(ctx context.Context, orgID int64) (orgFacts, bool, error) {
	if f.orgCache != nil {
		if facts, ok := f.orgCache.Get(orgID); ok {
			return facts, true, nil
		}
	}

	var facts orgFacts
	err := f.db.QueryRowContext(ctx, `
		SELECT visibility, join_policy, activity_status
		FROM organizations WHERE id = $1`, orgID,
	).Scan(&facts.Visibility, &facts.JoinPolicy, &facts.ActivityStatus)

	if err == sql.ErrNoRows {
		return orgFacts{}, false, nil
	}
	if err != nil {
		return orgFacts{}, false, fmt.Errorf("failed to load organization facts: %w", err)
	}

	if f.orgCache != nil {
		f.orgCache.Add(orgID, facts)
	}
	return facts, true, nil
}

// InvalidateOrganization drops a cached org entry. Called after
// organization updates so checks see the new visibility promptly.
func (f *factSource) InvalidateOrganization(orgID int64) {
	if f.orgCache != nil {
		f.orgCache.Remove(orgID)
	}
}

// Project returns project facts, or (zero, false, nil) when the project
// doesn't exist.
func (f *factSource) Project(ctx context.Context, projectID int64) (projectFacts, bool, error) {
	var facts projectFacts
	err := f.db.QueryRowContext(ctx, `
		SELECT organization_id, visibility
		FROM projects WHERE id = $1`, projectID,
	).Scan(&facts.OrganizationID, &facts.Visibility)

	if err == sql.ErrNoRows {
		return projectFacts{}, false, nil
	}
	if err != nil {
		return projectFacts{}, false, fmt.Errorf("failed to load project facts: %w", err)
	}
	return facts, true, nil
}

// VacancyExists reports whether a vacancy row exists
func (f *factSource) VacancyExists(ctx context.Context, vacancyID int64) (bool, error) {
	var exists bool
	err := f.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM vacancies WHERE id = $1)`, vacancyID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check vacancy: %w", err)
	}
	return exists, nil
}

// ApplicationOwner returns the applicant's user ID, or (0, false, nil)
// when the application doesn't exist.
func (f *factSource) ApplicationOwner(ctx context.Context, applicationID int64) (int64, bool, error) {
	var userID int64
	err := f.db.QueryRowContext(ctx,
		`SELECT user_id FROM applications WHERE id = $1`, applicationID,
	).Scan(&userID)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load application: %w", err)
	}
	return userID, true, nil
}

// IsMember reports whether a user belongs to an organization
func (f *factSource) IsMember(ctx context.Context, userID, orgID int64) (bool, error) {
	var exists bool
	err := f.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM organization_members
			WHERE user_id = $1 AND organization_id = $2
		)`, userID, orgID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}
