// Package auth verifies bearer tokens issued by the identity provider and
// keeps a denylist of signed-out tokens.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned for a missing, invalid, expired or revoked token.
var ErrUnauthenticated = errors.New("unauthorized")

// Claims are the token claims the service relies on. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithCookieName sets the cookie consulted when no Authorization header is sent.
func WithCookieName(name string) Option {
	return func(v *Verifier) { v.cookieName = name }
}

// WithRevoker sets the denylist checked on every request.
func WithRevoker(r Revoker) Option {
	return func(v *Verifier) { v.revoker = r }
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret     []byte
	cookieName string
	revoker    Revoker
	now        func() time.Time
}

// NewVerifier creates a Verifier for tokens signed with secret.
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:     []byte(secret),
		cookieName: "access_token",
		revoker:    NewMemoryRevoker(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses token and returns its claims when the signature, expiry,
// subject and revocation status all check out.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no token", ErrUnauthenticated)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrUnauthenticated)
	}

	revoked, err := v.revoker.IsRevoked(ctx, TokenID(claims, token))
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}
	return claims, nil
}

// Authenticate verifies the token carried by r.
func (v *Verifier) Authenticate(r *http.Request) (*Claims, error) {
	return v.Verify(r.Context(), v.TokenFromRequest(r))
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the session cookie.
func (v *Verifier) TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(v.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// CookieName is the session cookie consulted by TokenFromRequest.
func (v *Verifier) CookieName() string {
	return v.cookieName
}

// SignOut revokes the token until it would have expired anyway.
func (v *Verifier) SignOut(ctx context.Context, claims *Claims, token string) error {
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(v.now())
	}
	if ttl <= 0 {
		return nil
	}
	if err := v.revoker.Revoke(ctx, TokenID(claims, token), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// TokenID identifies a token on the denylist: its jti when present,
// otherwise a hash of the raw token.
func TokenID(claims *Claims, token string) string {
	if claims != nil && claims.ID != "" {
		return claims.ID
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewToken signs an HS256 token for userID. Used by local tooling and tests;
// production tokens come from the identity provider.
func NewToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type ctxKey struct{}

// WithClaims returns a context carrying the authenticated claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the authenticated claims, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok && c != nil
}

// UserID returns the authenticated user id, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	if c, ok := FromContext(ctx); ok {
		return c.Subject
	}
	return ""
}
