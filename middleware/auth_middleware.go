package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/agency-erp/auth"
	"github.com/evercare/agency-erp/models"
	"github.com/evercare/agency-erp/services/identity"
	"github.com/evercare/agency-erp/utils"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns parsed claims
	ValidateToken(ctx context.Context, token string) (*auth.ParsedClaims, error)
}

// IdentityResolver builds the request-scoped user context from the
// authenticated user's ID.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, session identity.SessionInfo) (*models.UserContext, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	resolver  IdentityResolver
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, resolver IdentityResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		resolver:  resolver,
		logger:    logger,
	}
}

// RequireAuth validates the bearer token and resolves the full user
// context (role, baseline permissions, active attributes) into the
// request context. Downstream enforcement reads only the resolved
// context, never the token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		uc, err := m.resolver.Resolve(ctx, claims.UserID, identity.SessionInfo{
			SessionID: claims.SessionID,
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			m.logger.Warn("identity resolution failed",
				zap.String("request_id", requestID),
				zap.String("user_id", claims.UserID.String()),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		ctx = WithUserContext(ctx, uc)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", uc.UserID.String()),
			zap.String("role", string(uc.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
