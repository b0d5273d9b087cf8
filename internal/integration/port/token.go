package port

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider supplies the API token attached to each request. It is
// an injected capability: acquisition and refresh are owned by the
// embedding host, not by this client.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ErrNoToken is returned when no API token has been configured.
var ErrNoToken = errors.New("port api token is not configured")

// StaticToken is a TokenProvider returning a fixed token supplied
// through configuration.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token(_ context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// TokenExpiry reports when the given Port API token expires. Port
// tokens are JWTs; the exp claim is read without signature
// verification, which is fine for warning about upcoming expiry but
// must never be used to authorize anything.
func TokenExpiry(token string) (time.Time, error) {
	token = strings.TrimPrefix(token, "Bearer ")

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry claim")
	}
	return claims.ExpiresAt.Time, nil
}
