// Package identity wraps the authentication service behind a minimal
// capability interface: sign in/up/out, current identity, reload, and email
// verification.
package identity

import (
	"context"
	"errors"

	"liquid-tasks/internal/models"
)

// Known failure categories surfaced to the user with specific messages;
// anything else gets a generic one.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrNotSignedIn        = errors.New("not signed in")
)

// Provider is the identity service contract. OnChange fires immediately with
// the current state (possibly nil) and again on every transition.
type Provider interface {
	OnChange(fn func(*models.Identity)) (remove func())
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, email, password string) (*models.Identity, error)
	SignInFederated(ctx context.Context, provider, email, displayName, photoURL string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	Current() *models.Identity
	Reload(ctx context.Context) (*models.Identity, error)
	SendVerification(ctx context.Context) error
	ConfirmVerification(ctx context.Context, token string) (*models.Identity, error)
}
