package perm

import (
	"context"
	"database/sql"
	"time"

	"github.com/crewhub/crewhub/pkg/observability"
)

// EvaluatorOptions configure the permission evaluator
type EvaluatorOptions struct {
	// RestrictOrgCreate gates organization creation on a DOMAIN
	// CREATE_ORGANIZATION grant. When false any user may create orgs.
	RestrictOrgCreate bool

	// OrgCacheSize and OrgCacheTTL bound the in-process org facts cache.
	// A size of 0 disables the cache.
	OrgCacheSize int
	OrgCacheTTL  time.Duration

	// Metrics, when set, records per-check counters and latencies
	Metrics *observability.Metrics
}

// Evaluator answers authorization questions by combining grant lookups
// with resource facts. All Can* methods are deny-by-default: a missing
// resource or grant yields (false, nil); errors are reserved for
// infrastructure failures.
type Evaluator struct {
	store             Store
	facts             *factSource
	restrictOrgCreate bool
	metrics           *observability.Metrics
}

// NewEvaluator creates a permission evaluator. The db handle is used for
// resource fact lookups; grant lookups go through the store (which may
// itself be cached).
func NewEvaluator(db *sql.DB, store Store, opts EvaluatorOptions) *Evaluator {
	return &Evaluator{
		store:             store,
		facts:             newFactSource(db, opts.OrgCacheSize, opts.OrgCacheTTL),
		restrictOrgCreate: opts.RestrictOrgCreate,
		metrics:           opts.Metrics,
	}
}

// HasGrant reports whether the exact grant tuple exists
func (e *Evaluator) HasGrant(ctx context.Context, key GrantKey) (bool, error) {
	grant, err := e.store.FindGrant(ctx, key)
	if err != nil {
		return false, err
	}
	return grant != nil, nil
}

// IsAdmin reports whether the user holds the domain-wide ADMIN grant.
// Domain grants carry the holder's own user ID as resource_id.
func (e *Evaluator) IsAdmin(ctx context.Context, userID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("is_admin", allowed, start) }()
	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceDomain,
		ResourceID:     userID,
		PermissionType: PermAdmin,
	})
}

// CanCreateOrganizations reports whether the user may create organizations.
// Open unless creation is restricted, in which case a domain
// CREATE_ORGANIZATION grant (or admin) is required.
func (e *Evaluator) CanCreateOrganizations(ctx context.Context, userID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_create_organizations", allowed, start) }()

	if !e.restrictOrgCreate {
		return true, nil
	}

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceDomain,
		ResourceID:     userID,
		PermissionType: PermCreateOrganization,
	})
}

// CanEditOrganization reports whether the user may edit an organization:
// admins, or holders of the org's EDIT_ORGANIZATION grant.
func (e *Evaluator) CanEditOrganization(ctx context.Context, userID, orgID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_edit_organization", allowed, start) }()

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceOrganization,
		ResourceID:     orgID,
		PermissionType: PermEditOrganization,
	})
}

// CanDeleteOrganizationMembers reports whether the user may remove members:
// admins, or holders of either the DELETE_ORGANIZATION_MEMBERS or
// EDIT_ORGANIZATION grant on the org.
func (e *Evaluator) CanDeleteOrganizationMembers(ctx context.Context, userID, orgID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_delete_organization_members", allowed, start) }()

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	if ok, err := e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceOrganization,
		ResourceID:     orgID,
		PermissionType: PermDeleteOrgMembers,
	}); err != nil || ok {
		return ok, err
	}

	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceOrganization,
		ResourceID:     orgID,
		PermissionType: PermEditOrganization,
	})
}

// CanSeeOrganizationDetail reports whether the user may view an
// organization's detail page. In order of precedence: orgs open to view
// (join policy and visibility both OPEN) allow anyone; admins may;
// members may; editors may. A missing org denies rather than erroring.
func (e *Evaluator) CanSeeOrganizationDetail(ctx context.Context, userID, orgID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_see_organization_detail", allowed, start) }()

	facts, found, err := e.facts.Organization(ctx, orgID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if facts.OpenToView() {
		return true, nil
	}

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	if member, err := e.facts.IsMember(ctx, userID, orgID); err != nil || member {
		return member, err
	}

	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceOrganization,
		ResourceID:     orgID,
		PermissionType: PermEditOrganization,
	})
}

// CanCreateProjectsInOrganization reports whether the user may create
// projects inside an organization: admins, or holders of the org's
// CREATE_PROJECTS_INSIDE_ORGANIZATION grant. Editing rights on the org
// do not imply project creation; callers wanting that composition use
// RequireAny.
func (e *Evaluator) CanCreateProjectsInOrganization(ctx context.Context, userID, orgID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_create_projects_in_organization", allowed, start) }()

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceOrganization,
		ResourceID:     orgID,
		PermissionType: PermCreateProjectsInOrg,
	})
}

// CanEditProject reports whether the user may edit a project: admins, or
// holders of the project's EDIT_PROJECT grant. Org-level rights do not
// cascade down; callers wanting that composition use RequireAny.
func (e *Evaluator) CanEditProject(ctx context.Context, userID, projectID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_edit_project", allowed, start) }()

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceProject,
		ResourceID:     projectID,
		PermissionType: PermEditProject,
	})
}

// CanSeeProject reports whether the user may view a project. In order of
// precedence: admins and project editors always may; a missing or
// CLOSED project denies everyone else, members included; otherwise the
// OPEN project is visible to anyone when its org has OPEN visibility,
// and to org members regardless.
func (e *Evaluator) CanSeeProject(ctx context.Context, userID, projectID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_see_project", allowed, start) }()

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	if ok, err := e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceProject,
		ResourceID:     projectID,
		PermissionType: PermEditProject,
	}); err != nil || ok {
		return ok, err
	}

	project, found, err := e.facts.Project(ctx, projectID)
	if err != nil {
		return false, err
	}
	if !found || project.Visibility != factOpen {
		return false, nil
	}

	org, orgFound, err := e.facts.Organization(ctx, project.OrganizationID)
	if err != nil {
		return false, err
	}
	if !orgFound {
		return false, nil
	}
	if org.Visibility == factOpen {
		return true, nil
	}

	return e.facts.IsMember(ctx, userID, project.OrganizationID)
}

// CanEditVacancy reports whether the user may edit a vacancy: admins, or
// holders of the vacancy's EDIT_VACANCY grant. Project-level rights do
// not cascade down; callers wanting that composition use RequireAny.
func (e *Evaluator) CanEditVacancy(ctx context.Context, userID, vacancyID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_edit_vacancy", allowed, start) }()

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	return e.HasGrant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceVacancy,
		ResourceID:     vacancyID,
		PermissionType: PermEditVacancy,
	})
}

// CanEditOwnApplication reports whether the user may modify an
// application: admins, or the applicant themselves. A missing
// application denies.
func (e *Evaluator) CanEditOwnApplication(ctx context.Context, userID, applicationID int64) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.record("can_edit_own_application", allowed, start) }()

	if admin, err := e.IsAdmin(ctx, userID); err != nil || admin {
		return admin, err
	}

	ownerID, found, err := e.facts.ApplicationOwner(ctx, applicationID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	return ownerID == userID, nil
}

// AllowEditOrganization grants a user edit rights on an organization and
// returns the grant, existing or new. Returns ErrNotFound when the
// organization doesn't exist: a grant on a missing resource would be
// meaningless.
func (e *Evaluator) AllowEditOrganization(ctx context.Context, userID, orgID int64) (*Grant, error) {
	_, found, err := e.facts.Organization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return e.grant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceOrganization,
		ResourceID:     orgID,
		PermissionType: PermEditOrganization,
	})
}

// AllowEditProject grants a user edit rights on a project. Idempotent;
// returns ErrNotFound when the project doesn't exist.
func (e *Evaluator) AllowEditProject(ctx context.Context, userID, projectID int64) (*Grant, error) {
	_, found, err := e.facts.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return e.grant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceProject,
		ResourceID:     projectID,
		PermissionType: PermEditProject,
	})
}

// AllowEditVacancy grants a user edit rights on a vacancy. Idempotent;
// returns ErrNotFound when the vacancy doesn't exist.
func (e *Evaluator) AllowEditVacancy(ctx context.Context, userID, vacancyID int64) (*Grant, error) {
	found, err := e.facts.VacancyExists(ctx, vacancyID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return e.grant(ctx, GrantKey{
		UserID:         userID,
		ResourceType:   ResourceVacancy,
		ResourceID:     vacancyID,
		PermissionType: PermEditVacancy,
	})
}

func (e *Evaluator) grant(ctx context.Context, key GrantKey) (*Grant, error) {
	grant, err := e.store.CreateGrant(ctx, key)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.GrantsIssuedTotal.WithLabelValues(
			string(key.ResourceType), string(key.PermissionType)).Inc()
	}
	return grant, nil
}

// RevokeOrganizationGrants removes all of a user's grants on an
// organization, typically after their membership ends. A non-nil tx
// scopes the delete to the caller's transaction; the caller must then
// invalidate the grant cache after committing.
func (e *Evaluator) RevokeOrganizationGrants(ctx context.Context, tx *sql.Tx, userID, orgID int64) error {
	if err := e.store.DeleteOrganizationGrants(ctx, tx, userID, orgID); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.GrantsRevokedTotal.Inc()
	}
	return nil
}

// InvalidateOrganizationGrantCache drops any cached entries for a user's
// grants on an organization. Call after committing a transaction that
// revoked them, so a concurrent read can't re-cache a row that was still
// visible pre-commit.
func (e *Evaluator) InvalidateOrganizationGrantCache(ctx context.Context, userID, orgID int64) {
	if inv, ok := e.store.(interface {
		InvalidateOrganizationGrants(ctx context.Context, userID, orgID int64)
	}); ok {
		inv.InvalidateOrganizationGrants(ctx, userID, orgID)
	}
}

// Store exposes the underlying grant store for callers that manage
// grants directly (membership removal, revocation endpoints).
func (e *Evaluator) Store() Store {
	return e.store
}

// InvalidateOrganizationFacts drops the cached facts for an org.
// Call after updating an organization's visibility or join policy.
func (e *Evaluator) InvalidateOrganizationFacts(orgID int64) {
	e.facts.InvalidateOrganization(orgID)
}

// record observes one check decision when metrics are enabled
func (e *Evaluator) record(check string, allowed bool, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObservePermissionCheck(check, allowed, time.Since(start))
	}
}
