// internal/auth/tokens.go
//
// HS256 bearer tokens.
//
// Context
// -------
// /login issues a signed token carrying the subject and role.  The Bearer
// guard verifies it on later requests.  Tokens are stateless; revocation
// is out of scope, so keep TTLs short.

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure.  Callers must not
// reveal which check failed.
var ErrInvalidToken = errors.New("auth: invalid token")

// Tokens issues and verifies tokens with one shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewTokens returns a token service.  secret must be non-empty.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret is empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: "relay", now: time.Now}, nil
}

// Issue signs a token for id.
func (t *Tokens) Issue(id Identity) (string, error) {
	now := t.now()
	c := claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return s, nil
}

// Verify parses raw and returns its identity.
func (t *Tokens) Verify(raw string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: c.Subject, Role: c.Role}, nil
}

// Credentials is a single configured login.
type Credentials struct {
	Username string
	Password string
	Role     string
}

// Check compares in constant time.  Empty configured credentials never
// match.
func (c Credentials) Check(username, password string) bool {
	if c.Username == "" || c.Password == "" {
		return false
	}
	u := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	return u&p == 1
}
