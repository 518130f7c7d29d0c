// Package middleware provides HTTP middleware for the session API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey ContextKey = "principal"
	// TokenKey is the context key for the raw bearer token, forwarded to remote stores.
	TokenKey ContextKey = "token"
)

// AuthCookie is the cookie the browser session keeps its token in.
const AuthCookie = "authToken"

// Claims represents JWT claims. Tokens issued by the record store carry the
// user id in "id" rather than "sub".
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id,omitempty"`
}

// Principal returns the identity the claims were issued for.
func (c *Claims) Principal() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Auth creates JWT authentication middleware. The token is read from the
// Authorization header and, failing that, from the session cookie.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractToken(r)
			if !ok {
				http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid || claims.Principal() == "" {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, claims.Principal())
			ctx = context.WithValue(ctx, TokenKey, tokenString)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if c, err := r.Cookie(AuthCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// GetPrincipal gets the principal from context.
func GetPrincipal(ctx context.Context) string {
	if v, ok := ctx.Value(PrincipalKey).(string); ok {
		return v
	}
	return ""
}

// GetToken gets the bearer token from context.
func GetToken(ctx context.Context) string {
	if v, ok := ctx.Value(TokenKey).(string); ok {
		return v
	}
	return ""
}

// WithPrincipal returns a context carrying principal and token, as Auth would set them.
func WithPrincipal(ctx context.Context, principal, token string) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, principal)
	return context.WithValue(ctx, TokenKey, token)
}
