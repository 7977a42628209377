package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrConfig signals an unusable issuer configuration.
var ErrConfig = errors.New("auth: invalid credential configuration")

// DefaultBcryptCost matches the work factor existing hashes were created with.
const DefaultBcryptCost = 12

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// TokenErrorKind classifies why a token was refused.
type TokenErrorKind int

const (
	TokenExpired TokenErrorKind = iota + 1
	TokenMalformed
	TokenSignatureMismatch
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenExpired:
		return "expired"
	case TokenMalformed:
		return "malformed"
	case TokenSignatureMismatch:
		return "signature mismatch"
	default:
		return "unknown"
	}
}

// TokenError is returned by ValidateToken.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "auth: token " + e.Kind.String()
	}
	return fmt.Sprintf("auth: token %s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

type tokenClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer hashes passwords and signs session tokens. It performs no I/O.
type Issuer struct {
	secret []byte
	cost   int
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customises an Issuer.
type IssuerOption func(*Issuer)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) IssuerOption {
	return func(i *Issuer) {
		if cost > 0 {
			i.cost = cost
		}
	}
}

// WithTokenTTL overrides the default session lifetime.
func WithTokenTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerClock overrides the clock used for iat/exp.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer builds an Issuer. An empty secret is a configuration error.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty signing secret", ErrConfig)
	}
	i := &Issuer{
		secret: []byte(secret),
		cost:   DefaultBcryptCost,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.cost < bcrypt.MinCost || i.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d out of range", ErrConfig, i.cost)
	}
	return i, nil
}

// HashPassword returns a bcrypt hash of plaintext.
func (i *Issuer) HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: password is required", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), i.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash.
func (i *Issuer) VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// TTL returns the configured default session lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// IssueToken signs an HS256 token for subjectID. A non-positive ttl uses the
// issuer default.
func (i *Issuer) IssueToken(subjectID string, role Role, ttl time.Duration) (string, error) {
	if subjectID == "" || !role.Valid() {
		return "", fmt.Errorf("%w: subject and role are required", ErrValidation)
	}
	if ttl <= 0 {
		ttl = i.ttl
	}
	now := i.now()
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature and expiry and returns the identity the
// token was issued for. Failures are *TokenError.
func (i *Issuer) ValidateToken(raw string) (Identity, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, classifyTokenError(err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Identity{}, &TokenError{Kind: TokenMalformed, Err: errors.New("missing subject or role")}
	}
	return Identity{SubjectID: claims.Subject, Role: claims.Role}, nil
}

func classifyTokenError(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: TokenSignatureMismatch, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}
