package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nekogravitycat/studio-booking-backend/internal/user"
)

var ErrInvalidToken = errors.New("invalid token")

// studioClaims carry the caller in the registered subject plus a role hint.
// The role is advisory: ActiveUserRequired replaces it with the directory role.
type studioClaims struct {
	Role user.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager verifies HS256 bearer tokens shared with the identity service.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue signs a token for a. The identity service mints production tokens;
// Issue serves operators and tests holding the same secret.
func (m *JWTManager) Issue(a Actor) (string, error) {
	if a.UserID == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	now := time.Now().UTC()

	claims := &studioClaims{
		Role: a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token's actor.
func (m *JWTManager) Verify(tokenStr string) (Actor, error) {
	claims := &studioClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Actor{UserID: claims.Subject, Role: claims.Role}, nil
}
