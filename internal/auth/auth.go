// Package auth mints and verifies bearer tokens. No other package in this
// module calls it: the LLM gateway provider sends the configured static
// token, and the CLI has no admin token. Grounded on the teacher's config-driven secret
// handling (internal/config loader treats secrets as opaque strings loaded
// from environment) generalized to stateless JWTs via golang-jwt/jwt/v5,
// the library the rest of the retrieved corpus reaches for bearer auth.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
)

// Claims is the runtime's JWT payload: subject plus a role used for
// coarse-grained authorization (e.g. "admin" for the CLI, "gateway" for
// internal service calls).
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Issuer mints and verifies tokens signed with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. secret must not be empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errkind.Newf(errkind.Contract, "auth.NewIssuer", "signing secret must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// Mint issues a signed token for subject with the given role.
func (i *Issuer) Mint(subject, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", errkind.New(errkind.Fatal, "auth.Mint", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, errkind.New(errkind.Contract, "auth.Verify", err)
	}
	if !token.Valid {
		return nil, errkind.Newf(errkind.Contract, "auth.Verify", "token is not valid")
	}
	return claims, nil
}
