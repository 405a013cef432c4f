package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/khepriforge/auth-service/internal/core/domain"
)

var (
	// ErrInvalidSession is returned for tokens that fail signature or shape checks.
	ErrInvalidSession = errors.New("security: invalid session token")
	// ErrExpiredSession is returned for well-formed tokens past their expiry.
	ErrExpiredSession = errors.New("security: session token expired")
)

// SessionClaims is the JWT payload minted after a successful login. The
// force_password_change claim lets the front end gate every page behind the
// rotation screen without a round trip.
type SessionClaims struct {
	Email               string      `json:"email"`
	Name                string      `json:"name"`
	Role                domain.Role `json:"role"`
	ForcePasswordChange bool        `json:"force_password_change"`
	jwt.RegisteredClaims
}

// SessionIssuer mints and parses HS256 session tokens. Session transport and
// storage live outside this service; this is the minimal gateway the HTTP
// surface needs.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSessionIssuer builds an issuer from the shared signing secret.
func NewSessionIssuer(secret string, ttl time.Duration, issuer string) (*SessionIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source, primarily for tests.
func (s *SessionIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Issue signs a session token for the authenticated identity.
func (s *SessionIssuer) Issue(identity domain.Identity) (string, error) {
	now := s.now().UTC()
	claims := SessionClaims{
		Email:               identity.Email,
		Name:                identity.Name,
		Role:                identity.Role,
		ForcePasswordChange: identity.ForcePasswordChange,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates the token signature and expiry and returns its claims.
func (s *SessionIssuer) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSession
		}
		return nil, ErrInvalidSession
	}
	if !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
