package rest

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of signed tokens when none is given.
const DefaultTokenTTL = 5 * time.Minute

// Signer mints HS256 bearer tokens.
type Signer struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner creates a Signer. A non-positive ttl uses DefaultTokenTTL.
func NewSigner(secret, subject string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{
		secret:  []byte(secret),
		subject: subject,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Token returns a freshly signed token.
func (s *Signer) Token() (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   s.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken checks an HS256 token signed with secret and returns its
// subject.
func VerifyToken(secret, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
