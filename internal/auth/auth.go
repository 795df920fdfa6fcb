// Package auth validates bearer credentials.
//
// Tokens are HMAC-signed JWTs. Issuance is someone else's job; this
// gate only verifies signatures and expiry and extracts the principal.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"dockhand"
)

// ErrInvalidToken covers every verification failure: bad signature,
// expired, malformed. Callers present a single message to the client.
var ErrInvalidToken = errors.New("invalid or expired token")

// Gate verifies bearer tokens against a shared HMAC secret.
type Gate struct {
	secret []byte
}

func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the principal encoded
// in its claims. The subject claim is required; role defaults to "viewer".
func (g *Gate) Verify(token string) (dockhand.Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return dockhand.Principal{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return dockhand.Principal{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return dockhand.Principal{}, ErrInvalidToken
	}

	role := "viewer"
	if r, ok := claims["role"].(string); ok && r != "" {
		role = r
	}
	return dockhand.Principal{Subject: sub, Role: role}, nil
}
