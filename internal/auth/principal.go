package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const principalKey contextKey = "riskmesh_principal"

// PrincipalFromContext extracts the resolved principal id from request context.
func PrincipalFromContext(ctx context.Context) string {
	p, _ := ctx.Value(principalKey).(string)
	return p
}

// Resolve extracts the principal id from the Authorization header. Two
// schemes are accepted: "ApiKey <id>" (the id is used verbatim as the
// principal) and "Bearer <jwt>" (validated against mgr, principal taken
// from the claim). mgr may be nil, in which case only the ApiKey scheme
// is accepted.
func Resolve(r *http.Request, mgr *PrincipalManager) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization format")
	}

	switch strings.ToLower(parts[0]) {
	case "apikey":
		if parts[1] == "" {
			return "", fmt.Errorf("empty api key")
		}
		return parts[1], nil
	case "bearer":
		if mgr == nil {
			return "", fmt.Errorf("bearer tokens not accepted")
		}
		claims, err := mgr.ValidateToken(parts[1])
		if err != nil {
			return "", err
		}
		return claims.Principal, nil
	default:
		return "", fmt.Errorf("unsupported auth scheme %q", parts[0])
	}
}

// Middleware resolves the principal and stores it in the request context.
// Unlike the teacher's realm-based authenticator, failure here does not by
// itself reject the request — RiskMesh's Non-goals exclude auth policy
// beyond mapping a key to a rate-limit bucket, so an unresolved principal
// is handed to the rate limiter as "" and the deny-unknown-principal
// policy decides the outcome.
func Middleware(mgr *PrincipalManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := Resolve(r, mgr)
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
