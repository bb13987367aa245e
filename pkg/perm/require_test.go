package perm

import (
	"context"
	"errors"
	"testing"
)

func allowCheck(ctx context.Context) (bool, error)  { return true, nil }
func denyCheck(ctx context.Context) (bool, error)   { return false, nil }
func brokenCheck(ctx context.Context) (bool, error) { return false, errors.New("db down") }

func TestRequireAll_AllPass(t *testing.T) {
	err := RequireAll(context.Background(), allowCheck, allowCheck, allowCheck)
	if err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestRequireAll_Empty(t *testing.T) {
	if err := RequireAll(context.Background()); err != nil {
		t.Errorf("Expected nil for empty check list, got %v", err)
	}
}

func TestRequireAll_DeniesOnFirstFalse(t *testing.T) {
	calls := 0
	counting := func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	}

	err := RequireAll(context.Background(), counting, denyCheck, counting)
	if !errors.Is(err, ErrDenied) {
		t.Errorf("Expected ErrDenied, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected evaluation to stop at the denial, got %d later calls", calls)
	}
}

func TestRequireAll_PropagatesErrors(t *testing.T) {
	err := RequireAll(context.Background(), allowCheck, brokenCheck)
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrDenied) {
		t.Errorf("Infrastructure error must not be reported as a denial: %v", err)
	}
}

func TestRequireAny(t *testing.T) {
	if err := RequireAny(context.Background(), denyCheck, allowCheck); err != nil {
		t.Errorf("Expected nil when one check passes, got %v", err)
	}

	err := RequireAny(context.Background(), denyCheck, denyCheck)
	if !errors.Is(err, ErrDenied) {
		t.Errorf("Expected ErrDenied when all deny, got %v", err)
	}

	if err := RequireAny(context.Background(), denyCheck, brokenCheck); err == nil {
		t.Error("Expected error to propagate")
	}
}
