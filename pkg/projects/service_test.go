package projects

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

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
		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'CLOSED',
			activity_status TEXT NOT NULL DEFAULT 'INACTIVE',
			join_policy TEXT NOT NULL DEFAULT 'CLOSED',
			created_by INTEGER NOT NULL
		);

		CREATE TABLE organization_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			UNIQUE (organization_id, user_id)
		);

		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'OPEN',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
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

func createOrg(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO organizations (name, created_by) VALUES ('acme', 1)`)
	if err != nil {
		t.Fatalf("Failed to create organization: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func TestService_Create(t *testing.T) {
	db := setupTestDB(t)
	svc, evaluator := newTestService(t, db)
	ctx := context.Background()

	orgID := createOrg(t, db)
	creatorID := int64(42)

	project, err := svc.Create(ctx, orgID, creatorID, &CreateProjectRequest{Name: "rocket"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if project.ID == 0 {
		t.Error("Expected project ID to be set")
	}
	if project.Visibility != VisibilityOpen {
		t.Errorf("Expected default OPEN visibility, got %s", project.Visibility)
	}

	canEdit, err := evaluator.CanEditProject(ctx, creatorID, project.ID)
	if err != nil {
		t.Fatalf("CanEditProject failed: %v", err)
	}
	if !canEdit {
		t.Error("Expected creator to be able to edit the project")
	}
}

func TestService_Create_MissingOrg(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)

	_, err := svc.Create(context.Background(), 999999, 1, &CreateProjectRequest{Name: "rocket"})
	if !errors.Is(err, ErrOrgNotFound) {
		t.Errorf("Expected ErrOrgNotFound, got %v", err)
	}
}

func TestService_GetAndList(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	orgID := createOrg(t, db)
	created, err := svc.Create(ctx, orgID, 1, &CreateProjectRequest{Name: "rocket", Description: "to the moon"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "rocket" || got.Description != "to the moon" {
		t.Errorf("Unexpected project: %+v", got)
	}

	_, err = svc.Get(ctx, 999999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	list, err := svc.ListByOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("ListByOrganization failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 project, got %d", len(list))
	}
}

func TestService_Update(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	orgID := createOrg(t, db)
	project, err := svc.Create(ctx, orgID, 1, &CreateProjectRequest{Name: "rocket"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	name := "booster"
	visibility := VisibilityClosed
	if err := svc.Update(ctx, project.ID, &UpdateProjectRequest{Name: &name, Visibility: &visibility}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := svc.Get(ctx, project.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "booster" || got.Visibility != VisibilityClosed {
		t.Errorf("Update not applied: %+v", got)
	}

	err = svc.Update(ctx, 999999, &UpdateProjectRequest{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	orgID := createOrg(t, db)
	project, err := svc.Create(ctx, orgID, 1, &CreateProjectRequest{Name: "rocket"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(ctx, project.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err = svc.Get(ctx, project.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	err = svc.Delete(ctx, project.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on double delete, got %v", err)
	}
}
