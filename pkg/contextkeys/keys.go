// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Session
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all protected API endpoints, permission middleware
	AuthKey Key = "auth_session"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, request tracing
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID (int64)
	// Set by: middleware.AuthMiddleware after token validation
	// Used by: logger, permission checks, user-scoped operations
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.RequestIDMiddleware
	// Used by: handlers that need structured logging with request context
	LoggerKey Key = "logger"
)

// WithAuth adds the authentication session to the context
func WithAuth(ctx context.Context, session interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, session)
}

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds the authenticated user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequestID retrieves the request ID from the context, or "" if unset
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// UserID retrieves the authenticated user ID from the context.
// The second return value reports whether a user is authenticated.
func UserID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(UserIDKey).(int64)
	return v, ok
}
