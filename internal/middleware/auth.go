// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey ContextKey = "user_id"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing authorization token")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents JWT claims. The subject is the storefront user id.
type Claims struct {
	jwt.RegisteredClaims
}

// ParseToken verifies an HMAC signed token and returns its claims.
func ParseToken(tokenString, jwtSecret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the "token" query parameter since browsers cannot set headers on a
// websocket upgrade.
func TokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", ErrInvalidToken
		}
		return parts[1], nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// Authenticator returns a function resolving the user id a request is
// authenticated as.
func Authenticator(jwtSecret string) func(r *http.Request) (string, error) {
	return func(r *http.Request) (string, error) {
		tokenString, err := TokenFromRequest(r)
		if err != nil {
			return "", err
		}
		claims, err := ParseToken(tokenString, jwtSecret)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
}

// Auth creates JWT authentication middleware.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	authenticate := Authenticator(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(r)
			if err != nil {
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusUnauthorized)
				return
			}

			noteUserID(r.Context(), userID)
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSameUser rejects requests whose URL parameter differs from the
// authenticated user. It is a no-op when the request is unauthenticated.
func RequireSameUser(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := GetUserID(r.Context()); userID != "" && chi.URLParam(r, param) != userID {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
