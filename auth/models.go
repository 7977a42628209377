package auth

import (
	"fmt"
	"strings"
	"time"

	"homelinka/moderation"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleAgent Role = "AGENT"
)

// ParseRole normalises raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: role %q", ErrValidation, raw)
	}
	return role, nil
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent
}

// User is the domain representation of an account.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Phone        string
	WhatsApp     *string
	BusinessName string
	Role         Role
	Status       moderation.UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContactWhatsApp returns the WhatsApp number, falling back to the phone.
func (u User) ContactWhatsApp() string {
	if u.WhatsApp != nil && strings.TrimSpace(*u.WhatsApp) != "" {
		return *u.WhatsApp
	}
	return u.Phone
}

// RegisterRequest contains agent registration data supplied by callers.
type RegisterRequest struct {
	FullName     string  `json:"fullName"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Phone        string  `json:"phone"`
	BusinessName string  `json:"businessName"`
	WhatsApp     *string `json:"whatsapp"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
