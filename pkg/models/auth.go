package models

import "time"

// LoginRequest is the wire body of a login call. Password and Token carry
// the obfuscated credential and the freshness token, never plaintext.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,hexadecimal"`
	Token      string `json:"token" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RegisterRequest is the wire body of a register call.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,hexadecimal"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Token     string `json:"token" validate:"required"`
}

// LoginResult is returned by login and register.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	Email       string `json:"email"`
	Message     string `json:"message"`
}

// LogoutResult is returned by logout.
type LogoutResult struct {
	AccessToken string `json:"access_token"`
	Message     string `json:"message"`
}

// Role is a user's access level on the platform.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an account on the platform.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         Role       `json:"role"`
	Credits      int        `json:"credits"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	PasswordHash string     `json:"-"`
}

// SubscriptionActive reports whether the user holds unexpired credits at now.
func (u *User) SubscriptionActive(now time.Time) bool {
	return u.Credits > 0 && u.ExpiresAt != nil && now.Before(*u.ExpiresAt)
}

// AccessToken is the server-side record of an issued bearer token.
type AccessToken struct {
	Hash      string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsExpired returns true if the token has passed its expiry time.
func (t *AccessToken) IsExpired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// IsRevoked returns true if the token has been revoked.
func (t *AccessToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// MessageResult is the data of calls that only acknowledge.
type MessageResult struct {
	Message string `json:"message"`
}
