package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	user := &User{ID: 42, Email: "alice@example.com"}
	token, err := tm.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	session, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if session.UserID != 42 || session.Email != "alice@example.com" {
		t.Errorf("Unexpected session: %+v", session)
	}
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret", -time.Minute)

	token, err := tm.GenerateToken(&User{ID: 42})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	_, err = tm.ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	other := NewTokenManager("different", time.Hour)

	token, err := tm.GenerateToken(&User{ID: 42})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	_, err = other.ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestTokenManager_Garbage(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	_, err := tm.ValidateToken("not.a.token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}
