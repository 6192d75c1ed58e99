// Package session mints and verifies the signed browser session token.
//
// The token carries identity plus a role/status snapshot. The snapshot is a
// cache: the gateway overwrites it from the account directory on every
// request, so the token is never the source of truth for authorization.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/engagehq/console/internal/services/console/policy"
)

// DefaultTTL bounds a session's lifetime from issue to forced re-login.
const DefaultTTL = 7 * 24 * time.Hour

// minSecretLength guards against trivially brute-forceable signing keys.
const minSecretLength = 32

var (
	// ErrInvalidToken covers malformed, tampered, or wrongly-signed tokens.
	ErrInvalidToken = errors.New("session: token is invalid")
	// ErrExpiredToken marks a token past its expiry.
	ErrExpiredToken = errors.New("session: token is expired")
)

// Session is the decoded browser session.
type Session struct {
	PrincipalID string
	Name        string
	Email       string
	Role        policy.Role
	Status      policy.Status
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// claims is the wire shape of the signed token.
type claims struct {
	jwt.RegisteredClaims
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// Codec signs and verifies session tokens with an HMAC secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec builds a codec. ttl <= 0 falls back to DefaultTTL; now == nil
// falls back to time.Now.
func NewCodec(secret []byte, ttl time.Duration, now func() time.Time) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: secret, ttl: ttl, now: now}, nil
}

// TTL returns the configured session lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a new token for the session, stamping issue and expiry times.
func (c *Codec) Issue(sess Session) (string, error) {
	principalID := strings.TrimSpace(sess.PrincipalID)
	if principalID == "" {
		return "", errors.New("principal id is required")
	}

	issued := c.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(c.ttl)),
		},
		Name:   sess.Name,
		Email:  sess.Email,
		Role:   string(sess.Role),
		Status: string(sess.Status),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Reissue signs a refreshed token that keeps the original issue time and
// expiry so a snapshot refresh never extends the session's lifetime.
func (c *Codec) Reissue(sess Session) (string, error) {
	principalID := strings.TrimSpace(sess.PrincipalID)
	if principalID == "" {
		return "", errors.New("principal id is required")
	}
	if sess.ExpiresAt.IsZero() {
		return c.Issue(sess)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Name:   sess.Name,
		Email:  sess.Email,
		Role:   string(sess.Role),
		Status: string(sess.Status),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Parse verifies the signature and expiry, returning the decoded session.
// Unknown roles and statuses decode to their most restrictive values.
func (c *Codec) Parse(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Session{}, mapJWTError(err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Session{}, ErrInvalidToken
	}
	if parsed.ExpiresAt == nil {
		return Session{}, ErrInvalidToken
	}

	sess := Session{
		PrincipalID: parsed.Subject,
		Name:        parsed.Name,
		Email:       parsed.Email,
		Role:        policy.ParseRole(parsed.Role),
		Status:      policy.ParseStatus(parsed.Status),
		ExpiresAt:   parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		sess.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return sess, nil
}

// mapJWTError translates jwt library errors into the package sentinels.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	return ErrInvalidToken
}
