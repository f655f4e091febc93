// Package admintoken guards reviewer operations. Two credentials are
// accepted: the static admin token from configuration, compared in constant
// time, and a short-lived HS256 session token issued after a reviewer login.
package admintoken

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	sessionIssuer   = "inkwell"
	sessionAudience = "inkwell-admin"
)

var defaultLeeway = 30 * time.Second

var (
	ErrInvalidToken = errors.New("invalid admin token")
	ErrNoSessions   = errors.New("session tokens not configured")
)

// Guard validates reviewer credentials on admin requests.
type Guard struct {
	adminToken    string
	sessionSecret []byte
	sessionTTL    time.Duration
	leeway        time.Duration
	now           func() time.Time
}

// New builds a guard. adminToken is required; sessionSecret may be empty,
// which disables session token issuing and verification.
func New(adminToken, sessionSecret string, sessionTTL time.Duration) (*Guard, error) {
	if strings.TrimSpace(adminToken) == "" {
		return nil, errors.New("admin token required")
	}
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	g := &Guard{
		adminToken: adminToken,
		sessionTTL: sessionTTL,
		leeway:     defaultLeeway,
		now:        time.Now,
	}
	if secret := strings.TrimSpace(sessionSecret); secret != "" {
		g.sessionSecret = []byte(secret)
	}
	return g, nil
}

// CheckStatic compares a caller-supplied token against the configured admin
// token in constant time.
func (g *Guard) CheckStatic(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.adminToken)) == 1
}

// Issue creates a session token for the given reviewer subject.
func (g *Guard) Issue(subject string) (string, error) {
	if g.sessionSecret == nil {
		return "", ErrNoSessions
	}
	now := g.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Audience:  jwt.ClaimStrings{sessionAudience},
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.sessionTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.sessionSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// VerifySession validates a session token and returns its subject.
func (g *Guard) VerifySession(tokenString string) (string, error) {
	if g.sessionSecret == nil {
		return "", ErrNoSessions
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return g.sessionSecret, nil
		},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithLeeway(g.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Authorize checks a request's credentials: the x-admin-token header first,
// then an Authorization bearer session token. It returns the acting subject.
func (g *Guard) Authorize(r *http.Request) (string, error) {
	if token := strings.TrimSpace(r.Header.Get("X-Admin-Token")); token != "" {
		if g.CheckStatic(token) {
			return "admin", nil
		}
		return "", ErrInvalidToken
	}
	bearer, ok := BearerToken(r)
	if !ok {
		return "", ErrInvalidToken
	}
	if g.sessionSecret == nil {
		// No session support: the bearer token must be the admin token.
		if g.CheckStatic(bearer) {
			return "admin", nil
		}
		return "", ErrInvalidToken
	}
	return g.VerifySession(bearer)
}

// BearerToken extracts a bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
