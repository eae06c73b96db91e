package middleware

import (
	"context"

	"github.com/evercare/agency-erp/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// UserContextKey is the context key for the resolved user context
	UserContextKey contextKey = "user_context"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetUserContext retrieves the resolved user context, or nil when the
// request is unauthenticated.
func GetUserContext(ctx context.Context) *models.UserContext {
	if val := ctx.Value(UserContextKey); val != nil {
		if uc, ok := val.(*models.UserContext); ok {
			return uc
		}
	}
	return nil
}

// WithUserContext adds a resolved user context to the context
func WithUserContext(ctx context.Context, uc *models.UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, uc)
}
