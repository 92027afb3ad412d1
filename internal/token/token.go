// Package token issues and validates signed session tokens. Tokens are HMAC
// signed JWTs carrying the user id as subject plus issued-at/expiry claims.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teamsched/internal/apperr"
)

// minKeyLen is the minimum HMAC-SHA256 key length: 256 bits.
const minKeyLen = 32

// Kind distinguishes access from refresh tokens.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// Codec signs and validates session tokens with a single symmetric key.
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec validates the signing key length and returns a Codec. A key
// shorter than 256 bits is a configuration error surfaced at startup.
func NewCodec(key string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(key) < minKeyLen {
		return nil, fmt.Errorf("token: signing key must be at least %d bytes, got %d", minKeyLen, len(key))
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token: ttls must be positive")
	}
	return &Codec{
		key:        []byte(key),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the codec clock. Test hook.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Issue returns a signed token of the given kind for userID.
func (c *Codec) Issue(userID uint, kind Kind) (string, error) {
	ttl := c.accessTTL
	if kind == Refresh {
		ttl = c.refreshTTL
	}
	return c.IssueWithTTL(userID, ttl)
}

// IssueWithTTL returns a signed token for userID with an explicit lifetime.
func (c *Codec) IssueWithTTL(userID uint, ttl time.Duration) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// Validate parses and verifies tok, returning the embedded user id.
// Expiry and tamper/format failures are distinct error kinds because
// callers react differently to them.
func (c *Codec) Validate(tok string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.key, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, apperr.ErrExpiredToken.Wrap(err)
		}
		return 0, apperr.ErrInvalidToken.Wrap(err)
	}
	if !parsed.Valid {
		return 0, apperr.ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperr.ErrInvalidToken.Wrap(err)
	}
	return uint(userID), nil
}
