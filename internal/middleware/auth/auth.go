// Package auth verifies bearer tokens and puts the caller's owner id in the
// request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("Access token required")
	ErrInvalidToken = errors.New("Invalid or expired token")
)

type contextKey struct{}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

// Authenticator validates HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret  []byte
	onError ErrorWriter
}

func New(secret string, onError ErrorWriter) *Authenticator {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			http.Error(w, err.Error(), status)
		}
	}
	return &Authenticator{secret: []byte(secret), onError: onError}
}

// Middleware rejects requests without a token with 401 and requests with a
// bad token with 403.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			a.onError(w, r, http.StatusUnauthorized, ErrMissingToken)
			return
		}

		owner, err := a.Verify(raw)
		if err != nil {
			a.onError(w, r, http.StatusForbidden, ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// Verify checks the signature and expiry of raw and returns the owner id,
// read from the "id" claim with "sub" as fallback.
func (a *Authenticator) Verify(raw string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	if owner := claimString(claims["id"]); owner != "" {
		return owner, nil
	}
	if owner := claimString(claims["sub"]); owner != "" {
		return owner, nil
	}
	return "", fmt.Errorf("token carries no subject")
}

// Sign issues a token for owner. Used by tooling and tests.
func (a *Authenticator) Sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func claimString(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, contextKey{}, owner)
}

// OwnerFromContext returns the authenticated owner id.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(contextKey{}).(string)
	return owner, ok && owner != ""
}
