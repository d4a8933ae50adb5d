package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "operator-secret"

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthenticatorAcceptsScopedToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "paylink-ops"})
	token, err := IssueToken(testSecret, "paylink-ops", "alice", []string{"paylink:operator"}, time.Minute)
	require.NoError(t, err)

	subject, err := auth.Verify(bearerRequest(token), "paylink:operator")
	require.NoError(t, err)
	require.Equal(t, "alice", subject)
}

func TestAuthenticatorRejections(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "paylink-ops"})

	_, err := auth.Verify(bearerRequest(""), "paylink:operator")
	require.ErrorIs(t, err, ErrMissingToken)

	wrongSecret, err := IssueToken("other", "paylink-ops", "alice", []string{"paylink:operator"}, time.Minute)
	require.NoError(t, err)
	_, err = auth.Verify(bearerRequest(wrongSecret), "paylink:operator")
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := IssueToken(testSecret, "someone-else", "alice", []string{"paylink:operator"}, time.Minute)
	require.NoError(t, err)
	_, err = auth.Verify(bearerRequest(wrongIssuer), "paylink:operator")
	require.ErrorIs(t, err, ErrInvalidToken)

	readOnly, err := IssueToken(testSecret, "paylink-ops", "alice", []string{"paylink:read"}, time.Minute)
	require.NoError(t, err)
	_, err = auth.Verify(bearerRequest(readOnly), "paylink:operator")
	require.ErrorIs(t, err, ErrInsufficientScope)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "paylink-ops", "scope": "paylink:operator",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.Verify(bearerRequest(noExpiry), "paylink:operator")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticatorDisabledWithoutSecret(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{})
	if auth.Enabled() {
		t.Fatalf("expected authenticator to be disabled")
	}
	if _, err := auth.Verify(bearerRequest("x")); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}
	if _, err := IssueToken(" ", "", "alice", nil, time.Minute); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("expected IssueToken to refuse an empty secret, got %v", err)
	}
}

func TestRequestIDAssignedAndReused(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, res.Header().Get(RequestIDHeader))

	const fixed = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, fixed)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, fixed, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEqual(t, "not-a-uuid", seen)
}
