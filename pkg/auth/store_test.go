package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
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
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func TestStore_RegisterAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	user, err := store.Register(ctx, "alice@example.com", "hunter22", "Alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == 0 {
		t.Error("Expected user ID to be set")
	}
	if user.PasswordHash == "hunter22" {
		t.Error("Password must not be stored in plaintext")
	}

	got, err := store.Authenticate(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Expected user %d, got %d", user.ID, got.ID)
	}
}

func TestStore_Register_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	if _, err := store.Register(ctx, "alice@example.com", "hunter22", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := store.Register(ctx, "alice@example.com", "other", "")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestStore_Authenticate_Failures(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	if _, err := store.Register(ctx, "alice@example.com", "hunter22", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := store.Authenticate(ctx, "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", err)
	}

	// Unknown email must not be distinguishable from a bad password
	_, err = store.Authenticate(ctx, "nobody@example.com", "hunter22")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestStore_GetByID(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	user, err := store.Register(ctx, "alice@example.com", "hunter22", "Alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.DisplayName != "Alice" {
		t.Errorf("Expected display name Alice, got %q", got.DisplayName)
	}

	_, err = store.GetByID(ctx, 999999)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
