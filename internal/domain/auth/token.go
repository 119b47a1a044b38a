// Package auth verifies the bearer tokens that identify players.
package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for a missing, malformed, expired or forged token.
var ErrUnauthorized = errors.New("unauthorized")

// Claims is the token payload. The player id travels in userId.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 player tokens.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens returns Tokens using the shared HMAC secret.
func NewTokens(secret []byte) *Tokens {
	return &Tokens{secret: secret, now: time.Now}
}

// Issue signs a token for playerID valid for ttl.
func (t *Tokens) Issue(playerID string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the player id.
func (t *Tokens) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", errors.Wrap(ErrUnauthorized, err.Error())
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return "", ErrUnauthorized
	}
	return claims.UserID, nil
}
