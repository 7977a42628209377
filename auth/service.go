package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"homelinka/moderation"
)

var (
	// ErrValidation signals malformed input.
	ErrValidation = errors.New("auth: validation failed")
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password too short")
	// ErrAccountPending signals an account still awaiting approval.
	ErrAccountPending = errors.New("auth: account pending approval")
	// ErrAccountRejected signals an account an admin rejected.
	ErrAccountRejected = errors.New("auth: account rejected")
	// ErrAccountSuspended signals an account an admin suspended.
	ErrAccountSuspended = errors.New("auth: account suspended")
)

// DefaultMinPasswordLength is the shortest password Register accepts unless
// overridden with WithMinPasswordLength.
const DefaultMinPasswordLength = 6

// Service handles registration and login.
type Service struct {
	repo        Repository
	issuer      *Issuer
	minPassword int
}

// LoginResult bundles the token and domain user returned after a successful login.
type LoginResult struct {
	Token string
	User  User
}

// NewService creates a new authentication service.
func NewService(repo Repository, issuer *Issuer) *Service {
	return &Service{
		repo:        repo,
		issuer:      issuer,
		minPassword: DefaultMinPasswordLength,
	}
}

// WithMinPasswordLength overrides the minimum password length. Values below
// one are raised to one so an empty password is never accepted.
func (s *Service) WithMinPasswordLength(n int) *Service {
	if n < 1 {
		n = 1
	}
	s.minPassword = n
	return s
}

// Register creates a PENDING agent account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: fullName is required", ErrValidation)
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if len(req.Password) < s.minPassword {
		return nil, ErrWeakPassword
	}

	var whatsapp *string
	if req.WhatsApp != nil {
		if w := strings.TrimSpace(*req.WhatsApp); w != "" {
			whatsapp = &w
		}
	}

	passwordHash, err := s.issuer.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Phone:        phone,
		WhatsApp:     whatsapp,
		BusinessName: strings.TrimSpace(req.BusinessName),
		Role:         RoleAgent,
		Status:       moderation.UserPending,
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates a user and returns a signed token. Only APPROVED
// accounts obtain a token. Status is checked after the password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !s.issuer.VerifyPassword(req.Password, user.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := statusError(user.Status); err != nil {
		return LoginResult{}, err
	}

	token, err := s.issuer.IssueToken(user.ID, user.Role, 0)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		User:  user,
	}, nil
}

// EnsureAdmin makes sure an APPROVED admin with the given email exists.
// It reports whether the account was created by this call.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, fullName string) (*User, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != RoleAdmin {
			return nil, false, fmt.Errorf("%w: %s is registered as %s", ErrValidation, email, existing.Role)
		}
		if existing.Status == moderation.UserApproved {
			return &existing, false, nil
		}
		updated, err := s.repo.UpdateStatus(ctx, existing.ID, moderation.UserApproved)
		if err != nil {
			return nil, false, err
		}
		return &updated, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, err
	}

	if len(password) < s.minPassword {
		return nil, false, ErrWeakPassword
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	passwordHash, err := s.issuer.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: passwordHash,
		Role:         RoleAdmin,
		Status:       moderation.UserApproved,
	})
	if err != nil {
		return nil, false, err
	}
	return &user, true, nil
}

// GetUserByID retrieves user information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func statusError(status moderation.UserStatus) error {
	switch status {
	case moderation.UserApproved:
		return nil
	case moderation.UserPending:
		return ErrAccountPending
	case moderation.UserRejected:
		return ErrAccountRejected
	case moderation.UserSuspended:
		return ErrAccountSuspended
	default:
		return fmt.Errorf("auth: account in unknown status %q", status)
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email %q is invalid", ErrValidation, raw)
	}
	return email, nil
}
