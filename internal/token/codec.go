// Package token signs and verifies the compact bearer tokens that carry an
// authenticated principal between requests. Tokens are HS256 JWTs with a
// fixed lifetime; verification is deliberately strict and fails on any
// missing or mistyped claim rather than coercing defaults.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenLifetime is how long a signed session token stays valid.
const SessionTokenLifetime = 7 * 24 * time.Hour

// MinSecretLen is the minimum length of the signing secret in bytes.
const MinSecretLen = 16

// ErrInvalidToken reports a token that failed signature, expiry, or claim
// shape checks. Callers map it to their unauthorized kind.
var ErrInvalidToken = errors.New("invalid token")

// Payload is the verified claim set of a session token.
type Payload struct {
	Subject     string
	Email       string
	PasswordGen int
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	PasswordGen *int   `json:"pwd_gen,omitempty"`
}

// Codec signs and verifies session tokens with a symmetric secret.
type Codec struct {
	secret   []byte
	lifetime time.Duration
}

// NewCodec builds a Codec. The secret must be at least MinSecretLen bytes.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLen)
	}
	return &Codec{secret: secret, lifetime: SessionTokenLifetime}, nil
}

// Sign mints a token for the given subject, email, and password generation
// marker.
func (c *Codec) Sign(subject, email string, passwordGen int) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
		Email:       email,
		PasswordGen: &passwordGen,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify parses and validates tokenString. It fails with ErrInvalidToken when
// the signature is wrong, the token is expired, or subject/email/password
// generation claims are absent.
func (c *Codec) Verify(tokenString string) (*Payload, error) {
	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Email == "" || claims.PasswordGen == nil {
		return nil, ErrInvalidToken
	}
	p := &Payload{
		Subject:     claims.Subject,
		Email:       claims.Email,
		PasswordGen: *claims.PasswordGen,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}
