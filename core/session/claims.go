package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/sekolahmbg/mbg-client/core"
)

// Claims is the subset of the backend's access token claims the client
// cares about. The client holds no signing key; tokens are parsed without
// verification, only to recover role/expiry hints. The backend remains the
// authority on both.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	SchoolID string `json:"school_id,omitempty"`
}

// ParseClaims decodes an access token without signature verification.
func ParseClaims(token string) (*Claims, error) {
	claims := new(Claims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "parsing access token")
	}
	return claims, nil
}

// RoleFromToken recovers the role carried in an access token. Used when a
// refresh response omits the role field.
func RoleFromToken(token string) core.Role {
	claims, err := ParseClaims(token)
	if err != nil {
		return core.RoleUnknown
	}
	return core.Role(claims.Role)
}

// ExpiresSoon reports whether the token expires within the window. Tokens
// without an exp claim never expire soon.
func ExpiresSoon(token string, window time.Duration) bool {
	claims, err := ParseClaims(token)
	if err != nil || claims.ExpiresAt == 0 {
		return false
	}
	return time.Now().Add(window).Unix() >= claims.ExpiresAt
}
