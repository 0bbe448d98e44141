package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// minSecretLength matches the config validation: HS256 secrets shorter than
// this are trivially brute-forceable.
const minSecretLength = 32

// defaultTokenTTL applies when no TTL is configured.
const defaultTokenTTL = 24 * time.Hour

// ServiceClaims extends JWT standard claims with the calling service's name.
// The API issues these to automation clients (dashboards, bridges) that
// trigger captures; there are no interactive users.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Service string `json:"svc"`
}

// GenerateServiceToken creates a signed HS256 token for a service client.
//
// Parameters:
//   - service: Name of the calling service (becomes the subject and svc claim)
//   - secret: HS256 signing secret (minimum 32 bytes)
//   - ttl: Token lifetime (defaultTokenTTL when zero or negative)
//
// Returns:
//   - string: Signed compact JWT
//   - error: ErrSecretTooShort or a signing failure
func GenerateServiceToken(service, secret string, ttl time.Duration) (string, error) {
	if len(secret) < minSecretLength {
		return "", ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   service,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Service: service,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing service token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a service token, returning its claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}
