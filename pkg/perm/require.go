package perm

import (
	"context"
	"fmt"
)

// Check is a single authorization predicate. Checks return (false, nil)
// for a clean denial and reserve errors for infrastructure failures.
type Check func(ctx context.Context) (bool, error)

// RequireAll evaluates checks in order and returns ErrDenied on the
// first one that reports false. Evaluation stops at the first denial or
// error, so later checks can assume earlier ones passed.
func RequireAll(ctx context.Context, checks ...Check) error {
	for _, check := range checks {
		allowed, err := check(ctx)
		if err != nil {
			return fmt.Errorf("permission check failed: %w", err)
		}
		if !allowed {
			return ErrDenied
		}
	}
	return nil
}

// RequireAny evaluates checks in order and succeeds on the first one
// that reports true. Returns ErrDenied when all deny.
func RequireAny(ctx context.Context, checks ...Check) error {
	for _, check := range checks {
		allowed, err := check(ctx)
		if err != nil {
			return fmt.Errorf("permission check failed: %w", err)
		}
		if allowed {
			return nil
		}
	}
	return ErrDenied
}
