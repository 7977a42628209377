package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated signals a missing or unusable bearer token.
	ErrUnauthenticated = errors.New("auth: authentication required")
	// ErrForbidden signals an authenticated caller without the capability.
	ErrForbidden = errors.New("auth: forbidden")
)

// Identity is the verified caller behind a request.
type Identity struct {
	SubjectID string
	Role      Role
}

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// Capability names a privilege a route requires.
type Capability int

const (
	// CapAgent is held by agents and admins.
	CapAgent Capability = iota + 1
	// CapAdmin is held by admins only.
	CapAdmin
)

func (c Capability) String() string {
	switch c {
	case CapAgent:
		return "agent"
	case CapAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Allows reports whether role holds the capability. ADMIN holds every
// capability AGENT holds.
func (c Capability) Allows(role Role) bool {
	switch c {
	case CapAdmin:
		return role == RoleAdmin
	case CapAgent:
		return role == RoleAgent || role == RoleAdmin
	default:
		return false
	}
}

// Guard turns Authorization headers into identities.
type Guard struct {
	issuer *Issuer
}

// NewGuard creates a guard validating tokens with issuer.
func NewGuard(issuer *Issuer) *Guard {
	return &Guard{issuer: issuer}
}

// RequireAuthenticated parses "Bearer <token>" and validates the token.
func (g *Guard) RequireAuthenticated(header string) (Identity, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, ErrUnauthenticated
	}
	identity, err := g.issuer.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return identity, nil
}

// RequireRole checks identity against a capability.
func RequireRole(identity Identity, capability Capability) error {
	if identity.SubjectID == "" {
		return ErrUnauthenticated
	}
	if !capability.Allows(identity.Role) {
		return fmt.Errorf("%w: %s capability required", ErrForbidden, capability)
	}
	return nil
}
