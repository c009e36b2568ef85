package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ApiKeyScheme(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("Authorization", "ApiKey merchant-42")

	principal, err := Resolve(r, nil)
	require.NoError(t, err)
	assert.Equal(t, "merchant-42", principal)
}

func TestResolve_ApiKeySchemeRejectsEmptyKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("Authorization", "ApiKey ")

	_, err := Resolve(r, nil)
	assert.Error(t, err)
}

func TestResolve_BearerSchemeValidatesAgainstManager(t *testing.T) {
	mgr := NewPrincipalManager("a-strong-enough-test-signing-secret", time.Hour)
	token, err := mgr.GenerateToken("merchant-42")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	principal, err := Resolve(r, mgr)
	require.NoError(t, err)
	assert.Equal(t, "merchant-42", principal)
}

func TestResolve_BearerSchemeWithoutManagerIsRejected(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("Authorization", "Bearer whatever")

	_, err := Resolve(r, nil)
	assert.Error(t, err)
}

func TestResolve_BearerSchemeRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	issuer := NewPrincipalManager("issuer-secret-that-is-long-enough", time.Hour)
	verifier := NewPrincipalManager("different-secret-that-is-long-enough", time.Hour)

	token, err := issuer.GenerateToken("merchant-42")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err = Resolve(r, verifier)
	assert.Error(t, err)
}

func TestResolve_MissingAuthorizationHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	_, err := Resolve(r, nil)
	assert.Error(t, err)
}

func TestResolve_UnsupportedScheme(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err := Resolve(r, nil)
	assert.Error(t, err)
}

func TestMiddleware_StoresResolvedPrincipalInContext(t *testing.T) {
	mgr := NewPrincipalManager("a-strong-enough-test-signing-secret", time.Hour)

	var captured string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = PrincipalFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	r.Header.Set("Authorization", "ApiKey merchant-7")
	w := httptest.NewRecorder()

	Middleware(mgr)(next).ServeHTTP(w, r)
	assert.Equal(t, "merchant-7", captured)
}

func TestMiddleware_UnresolvedPrincipalIsEmptyStringNotRejection(t *testing.T) {
	mgr := NewPrincipalManager("a-strong-enough-test-signing-secret", time.Hour)

	var captured string
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		captured = PrincipalFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	w := httptest.NewRecorder()

	Middleware(mgr)(next).ServeHTTP(w, r)
	assert.True(t, reached)
	assert.Empty(t, captured)
}
