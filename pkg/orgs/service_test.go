package orgs

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crewhub/crewhub/pkg/observability"
	"github.com/crewhub/crewhub/pkg/perm"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'CLOSED',
			activity_status TEXT NOT NULL DEFAULT 'INACTIVE',
			join_policy TEXT NOT NULL DEFAULT 'CLOSED',
			created_by INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE organization_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (organization_id, user_id)
		);

		CREATE TABLE org_join_codes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			code TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE applications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vacancy_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id INTEGER NOT NULL,
			permission_type TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, resource_type, resource_id, permission_type)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func newTestService(t *testing.T, db *sql.DB) (*Service, *perm.Evaluator) {
	t.Helper()
	evaluator := perm.NewEvaluator(db, perm.NewStore(db), perm.EvaluatorOptions{})
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(db, evaluator, logger), evaluator
}

func createUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO users (email) VALUES (?)`, email)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func TestService_Create(t *testing.T) {
	db := setupTestDB(t)
	svc, evaluator := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if org.ID == 0 {
		t.Error("Expected organization ID to be set")
	}
	if org.Visibility != VisibilityClosed || org.JoinPolicy != JoinPolicyClosed || org.ActivityStatus != ActivityInactive {
		t.Errorf("Expected closed/inactive defaults, got %s/%s/%s",
			org.Visibility, org.JoinPolicy, org.ActivityStatus)
	}

	// The creator is a member and can edit the new org
	isMember, err := svc.IsMember(ctx, org.ID, creator)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !isMember {
		t.Error("Expected creator to be a member")
	}

	canEdit, err := evaluator.CanEditOrganization(ctx, creator, org.ID)
	if err != nil {
		t.Fatalf("CanEditOrganization failed: %v", err)
	}
	if !canEdit {
		t.Error("Expected creator to be able to edit the organization")
	}
}

func TestService_Create_HonorsRequestedPolicy(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	visibility := VisibilityOpen
	joinPolicy := JoinPolicyOpen
	org, err := svc.Create(ctx, creator, &CreateOrgRequest{
		Name:       "acme",
		Visibility: &visibility,
		JoinPolicy: &joinPolicy,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if org.Visibility != VisibilityOpen || org.JoinPolicy != JoinPolicyOpen {
		t.Errorf("Expected open org, got %s/%s", org.Visibility, org.JoinPolicy)
	}
}

func TestService_AddMember(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	user := createUser(t, db, "user@example.com")
	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.AddMember(ctx, org.ID, user); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	_, err = svc.AddMember(ctx, org.ID, user)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("Expected ErrAlreadyMember, got %v", err)
	}

	_, err = svc.AddMember(ctx, 999999, user)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing org, got %v", err)
	}
}

func TestService_RemoveMember_Cascade(t *testing.T) {
	db := setupTestDB(t)
	svc, evaluator := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	user := createUser(t, db, "user@example.com")
	other := createUser(t, db, "other@example.com")

	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.AddMember(ctx, org.ID, user); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	// Pending applications held by the removed user, in and outside this
	// org, plus one by another user that must survive
	if _, err := db.Exec(`INSERT INTO applications (vacancy_id, user_id) VALUES (1, ?), (2, ?), (1, ?)`,
		user, user, other); err != nil {
		t.Fatalf("Failed to seed applications: %v", err)
	}
	// An already-accepted application is kept
	if _, err := db.Exec(`INSERT INTO applications (vacancy_id, user_id, status) VALUES (3, ?, 'ACCEPTED')`,
		user); err != nil {
		t.Fatalf("Failed to seed applications: %v", err)
	}

	// A grant on the org that must be revoked
	if _, err := evaluator.AllowEditOrganization(ctx, user, org.ID); err != nil {
		t.Fatalf("AllowEditOrganization failed: %v", err)
	}

	if err := svc.RemoveMember(ctx, org.ID, user); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	isMember, err := svc.IsMember(ctx, org.ID, user)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if isMember {
		t.Error("Expected membership to be removed")
	}

	var userPending, userAccepted, otherApps int
	if err := db.QueryRow(`SELECT COUNT(*) FROM applications WHERE user_id = ? AND status = 'PENDING'`, user).Scan(&userPending); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM applications WHERE user_id = ? AND status = 'ACCEPTED'`, user).Scan(&userAccepted); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM applications WHERE user_id = ?`, other).Scan(&otherApps); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if userPending != 0 {
		t.Errorf("Expected removed user's pending applications to be deleted, %d remain", userPending)
	}
	if userAccepted != 1 {
		t.Errorf("Expected removed user's accepted application to survive, got %d", userAccepted)
	}
	if otherApps != 1 {
		t.Errorf("Expected other user's application to survive, got %d", otherApps)
	}

	canEdit, err := evaluator.CanEditOrganization(ctx, user, org.ID)
	if err != nil {
		t.Fatalf("CanEditOrganization failed: %v", err)
	}
	if canEdit {
		t.Error("Expected org grants to be revoked")
	}

	// Removing again is an idempotent no-op
	if err := svc.RemoveMember(ctx, org.ID, user); err != nil {
		t.Errorf("Expected no-op removal of non-member, got %v", err)
	}
}

func TestService_RemoveMember_RevocationFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	svc, evaluator := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	user := createUser(t, db, "user@example.com")

	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.AddMember(ctx, org.ID, user); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if _, err := evaluator.AllowEditOrganization(ctx, user, org.ID); err != nil {
		t.Fatalf("AllowEditOrganization failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO applications (vacancy_id, user_id) VALUES (1, ?)`, user); err != nil {
		t.Fatalf("Failed to seed application: %v", err)
	}

	// Make the in-transaction grant delete fail
	if _, err := db.Exec(`ALTER TABLE permissions RENAME TO permissions_hidden`); err != nil {
		t.Fatalf("Failed to hide permissions table: %v", err)
	}

	if err := svc.RemoveMember(ctx, org.ID, user); err == nil {
		t.Fatal("Expected RemoveMember to fail when grant revocation fails")
	}

	// The whole cascade must roll back: membership, applications, and
	// grants all stay consistent with each other.
	isMember, err := svc.IsMember(ctx, org.ID, user)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !isMember {
		t.Error("Expected membership to survive a failed removal")
	}

	var pending int
	if err := db.QueryRow(`SELECT COUNT(*) FROM applications WHERE user_id = ? AND status = 'PENDING'`, user).Scan(&pending); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("Expected pending application to survive a failed removal, got %d", pending)
	}

	if _, err := db.Exec(`ALTER TABLE permissions_hidden RENAME TO permissions`); err != nil {
		t.Fatalf("Failed to restore permissions table: %v", err)
	}

	canEdit, err := evaluator.CanEditOrganization(ctx, user, org.ID)
	if err != nil {
		t.Fatalf("CanEditOrganization failed: %v", err)
	}
	if !canEdit {
		t.Error("Expected grant to survive a failed removal")
	}
}

func TestService_Join(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	user := createUser(t, db, "user@example.com")

	openPolicy := JoinPolicyOpen
	openOrg, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "open", JoinPolicy: &openPolicy})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	closedOrg, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "closed"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Join(ctx, openOrg.ID, user); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	_, err = svc.Join(ctx, closedOrg.ID, user)
	if !errors.Is(err, ErrJoinClosed) {
		t.Errorf("Expected ErrJoinClosed, got %v", err)
	}
}

func TestService_JoinWithCode(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	user := createUser(t, db, "user@example.com")

	codePolicy := JoinPolicyCode
	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "codeorg", JoinPolicy: &codePolicy})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	jc, err := svc.CreateJoinCode(ctx, org.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateJoinCode failed: %v", err)
	}

	if _, err := svc.JoinWithCode(ctx, jc.Code, user); err != nil {
		t.Fatalf("JoinWithCode failed: %v", err)
	}

	isMember, err := svc.IsMember(ctx, org.ID, user)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !isMember {
		t.Error("Expected user to be a member after redeeming code")
	}

	_, err = svc.JoinWithCode(ctx, "nosuchcode", creator)
	if !errors.Is(err, ErrInvalidJoinCode) {
		t.Errorf("Expected ErrInvalidJoinCode, got %v", err)
	}
}

func TestService_JoinWithCode_Expired(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	user := createUser(t, db, "user@example.com")

	codePolicy := JoinPolicyCode
	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "codeorg", JoinPolicy: &codePolicy})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	jc, err := svc.CreateJoinCode(ctx, org.ID, -time.Minute)
	if err != nil {
		t.Fatalf("CreateJoinCode failed: %v", err)
	}

	_, err = svc.JoinWithCode(ctx, jc.Code, user)
	if !errors.Is(err, ErrInvalidJoinCode) {
		t.Errorf("Expected ErrInvalidJoinCode for expired code, got %v", err)
	}
}

func TestService_CleanupExpiredJoinCodes(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.CreateJoinCode(ctx, org.ID, -time.Minute); err != nil {
		t.Fatalf("CreateJoinCode failed: %v", err)
	}
	fresh, err := svc.CreateJoinCode(ctx, org.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateJoinCode failed: %v", err)
	}

	removed, err := svc.CleanupExpiredJoinCodes(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredJoinCodes failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 code removed, got %d", removed)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM org_join_codes WHERE code = ?`, fresh.Code).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Error("Expected unexpired code to survive cleanup")
	}
}

func TestService_Update(t *testing.T) {
	db := setupTestDB(t)
	svc, evaluator := newTestService(t, db)
	ctx := context.Background()

	creator := createUser(t, db, "creator@example.com")
	stranger := createUser(t, db, "stranger@example.com")
	org, err := svc.Create(ctx, creator, &CreateOrgRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	visibility := VisibilityOpen
	joinPolicy := JoinPolicyOpen
	if err := svc.Update(ctx, org.ID, &UpdateOrgRequest{
		Visibility: &visibility,
		JoinPolicy: &joinPolicy,
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Opening the org takes effect for permission checks immediately
	canSee, err := evaluator.CanSeeOrganizationDetail(ctx, stranger, org.ID)
	if err != nil {
		t.Fatalf("CanSeeOrganizationDetail failed: %v", err)
	}
	if !canSee {
		t.Error("Expected opened org to be visible to strangers")
	}

	err = svc.Update(ctx, 999999, &UpdateOrgRequest{Visibility: &visibility})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
