// Package auth resolves sessions against a managed identity provider and
// guards protected routes.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

const (
	// MinPasswordLength matches the provider's default policy.
	MinPasswordLength = 6
	// PasswordRedirectDelay is how long the UI waits before returning to the
	// login page after a successful password change.
	PasswordRedirectDelay = 3 * time.Second
	// ResetRedirectPath is where the provider's recovery email lands.
	ResetRedirectPath = "/ui/update-password.html"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated login issued by the provider.
type Session struct {
	AccessToken string    `json:"access_token"`
	User        User      `json:"user"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Provider is the managed auth service.
type Provider interface {
	GetSession(ctx context.Context, token string) (Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, token, password string) error
}

// ValidateNewPassword checks a password change form before it reaches the
// provider.
func ValidateNewPassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// ProviderError is a non-auth failure reported by a remote provider.
type ProviderError struct {
	Op        string
	Status    int
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Op + ": " + e.Message
}
