package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when the caller's identity cannot be established.
var ErrUnauthenticated = errors.New("missing or invalid credentials")

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	// LegacyRoleHint is an optional role claim carried by older tokens, used
	// only as the default when auto-provisioning a membership.
	LegacyRoleHint string
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Verifier validates bearer tokens signed with the platform's shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for HS256-signed tokens.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// ParseAuthorization extracts and verifies the identity from an
// "Authorization: Bearer <token>" header value.
func (v *Verifier) ParseAuthorization(header string) (*Identity, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrUnauthenticated
	}
	return v.Parse(strings.TrimPrefix(header, prefix))
}

// Parse verifies a raw token string and returns the caller identity.
func (v *Verifier) Parse(tokenString string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrUnauthenticated
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrUnauthenticated)
	}

	return &Identity{UserID: userID, LegacyRoleHint: c.Role}, nil
}

type contextKey struct{}

// WithIdentity attaches the caller identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller identity, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok
}
