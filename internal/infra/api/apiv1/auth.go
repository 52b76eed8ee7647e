package apiv1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// Authenticator resolves the caller from an HS256 bearer token. Requests
// without a token stay anonymous.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns nil when no secret is configured; a nil
// Authenticator accepts every request anonymously.
func NewAuthenticator(secret string) *Authenticator {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret)}
}

// Mint issues a token for subject. Used by the CLI to hand out dev tokens.
func (a *Authenticator) Mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Subject:   subject,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Subject returns the token subject, "" when the request carries no bearer
// token, or errInvalidToken.
func (a *Authenticator) Subject(r *http.Request) (string, error) {
	if a == nil {
		return "", nil
	}
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return "", nil
	}
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return "", errInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}
