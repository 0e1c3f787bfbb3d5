// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vitrine-app/vitrine/internal/logging"
	"github.com/vitrine-app/vitrine/internal/models"
)

type contextKey string

const userContextKey contextKey = "vitrine.user"

// ContextWithUser attaches the request identity to the context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the request identity, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// Middleware authenticates requests and injects models.User into the
// request context.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates the authentication middleware. A nil jwtManager
// selects header-trust mode for development: identity is read verbatim
// from X-User-ID and X-User-Role.
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// Authenticate wraps next with identity extraction. Requests without a
// resolvable identity are rejected with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.resolve(r)
		if !ok {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

func (m *Middleware) resolve(r *http.Request) (models.User, bool) {
	if m.jwtManager == nil {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			return models.User{}, false
		}
		return models.User{ID: userID, Role: r.Header.Get("X-User-Role")}, true
	}

	token := bearerToken(r)
	if token == "" {
		return models.User{}, false
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected session token")
		return models.User{}, false
	}

	return models.User{ID: claims.UserID, Role: claims.Role}, true
}

// bearerToken extracts the token from the Authorization header or, as a
// fallback for browser clients, the session cookie.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("vitrine_session"); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "authentication required",
	})
}
