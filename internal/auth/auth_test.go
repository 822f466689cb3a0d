package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthenticateValidToken(t *testing.T) {
	a := NewJWTAuthenticator("secret", "transaction-engine")
	token, err := a.Sign(42, time.Minute)
	require.NoError(t, err)

	p, err := a.Authenticate(requestWithToken(token))
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
}

func TestAuthenticateMissingToken(t *testing.T) {
	a := NewJWTAuthenticator("secret", "")

	_, err := a.Authenticate(requestWithToken(""))
	assert.ErrorIs(t, err, ErrMissingCredentials)

	r := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	a := NewJWTAuthenticator("secret", "transaction-engine")
	other := NewJWTAuthenticator("other-secret", "transaction-engine")

	wrongSecret, err := other.Sign(1, time.Minute)
	require.NoError(t, err)

	expired, err := a.Sign(1, -time.Minute)
	require.NoError(t, err)

	wrongIssuer, err := NewJWTAuthenticator("secret", "someone-else").Sign(1, time.Minute)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "transaction-engine",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "1",
		Issuer:  "transaction-engine",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": wrongSecret,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"bad subject":  badSubject,
		"no expiry":    noExpiry,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(requestWithToken(token))
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}
