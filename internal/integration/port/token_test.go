package port_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port-experimental/integration-healthcheck/internal/integration/port"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	expiresAt := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	got, err := port.TokenExpiry(token)
	require.NoError(t, err)
	assert.True(t, got.Equal(expiresAt), "got %v, want %v", got, expiresAt)

	// Bearer prefix is tolerated since that is how tokens arrive in config.
	got, err = port.TokenExpiry("Bearer " + token)
	require.NoError(t, err)
	assert.True(t, got.Equal(expiresAt))
}

func TestTokenExpiry_NoExpClaim(t *testing.T) {
	token := signedToken(t, jwt.RegisteredClaims{Subject: "machine-user"})

	_, err := port.TokenExpiry(token)
	assert.Error(t, err)
}

func TestTokenExpiry_NotAJWT(t *testing.T) {
	_, err := port.TokenExpiry("opaque-api-key")
	assert.Error(t, err)
}
