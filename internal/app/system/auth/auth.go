// internal/app/system/auth/auth.go

// Package auth loads the authenticated user from a bearer session token
// and exposes request-scoped user helpers plus route guards.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"github.com/kinderlink/kinderlink/internal/app/system/token"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// UserLoader fetches a user by id so every request sees fresh role and
// completeness state, not whatever was true when the token was minted.
type UserLoader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Middleware verifies bearer tokens and injects the user into context.
type Middleware struct {
	Issuer *token.Issuer
	Users  UserLoader
	Log    *zap.Logger
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(issuer *token.Issuer, users UserLoader, logger *zap.Logger) *Middleware {
	return &Middleware{Issuer: issuer, Users: users, Log: logger}
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(r *http.Request) (*models.User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*models.User)
	return u, ok
}

// WithTestUser injects a user into the request context. Test helper.
func WithTestUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// LoadUser parses an Authorization: Bearer header if present, verifies the
// session token, and loads the user into context. Requests without a
// token, or with an invalid one, continue unauthenticated; the guards
// below decide whether that is fatal.
func (m *Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.Issuer.VerifySession(raw)
		if err != nil {
			m.Log.Debug("session token rejected", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		oid, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			m.Log.Debug("session token carried malformed user id", zap.String("user_id", userID))
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		u, err := m.Users.GetByID(ctx, oid)
		if err != nil {
			m.Log.Debug("session user not found", zap.String("user_id", userID), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), currentUserKey, u)))
	})
}

// RequireSignedIn rejects unauthenticated requests with 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			writeDenied(w, http.StatusUnauthorized, "missing or invalid session token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose user lacks one of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				writeDenied(w, http.StatusUnauthorized, "missing or invalid session token")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				writeDenied(w, http.StatusForbidden, "role "+u.Role+" cannot access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeDenied(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": msg,
	})
}
