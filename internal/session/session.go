// Package session holds the signed-in official for the dashboard process.
//
// The session is an explicit object passed to the components that need it,
// never a global. It is loaded once on start from the identity service and
// cleared on sign-out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

var (
	// ErrNotSignedIn is returned by operations that need an official.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrInvalidPassword is returned for password changes that cannot be sent.
	ErrInvalidPassword = errors.New("invalid password change")
)

// IdentityProvider authenticates officials against the data service.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (domain.Official, error)
	SignOut(ctx context.Context) error
	Me(ctx context.Context) (domain.Official, error)
	UpdatePassword(ctx context.Context, current, next string) error
}

// Context is the current-official state shared by the HTTP layer and triage.
type Context struct {
	provider IdentityProvider
	logger   *slog.Logger

	mu   sync.RWMutex
	user *domain.Official
}

// New creates an empty session backed by provider.
func New(provider IdentityProvider, logger *slog.Logger) *Context {
	return &Context{provider: provider, logger: logger}
}

// Load asks the identity service who is signed in. Failure leaves the
// session empty; it is not an error to start signed out.
func (c *Context) Load(ctx context.Context) {
	off, err := c.provider.Me(ctx)
	if err != nil {
		c.logger.Info("no active session", "error", err)
		c.set(nil)
		return
	}
	c.set(&off)
	c.logger.Info("session restored", "official_id", off.ID)
}

// User returns the signed-in official.
func (c *Context) User() (domain.Official, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return domain.Official{}, false
	}
	return *c.user, true
}

// Require returns the signed-in official or ErrNotSignedIn.
func (c *Context) Require() (domain.Official, error) {
	off, ok := c.User()
	if !ok {
		return domain.Official{}, ErrNotSignedIn
	}
	return off, nil
}

// SignIn authenticates and stores the official.
func (c *Context) SignIn(ctx context.Context, email, password string) (domain.Official, error) {
	off, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return domain.Official{}, fmt.Errorf("sign in: %w", err)
	}
	c.set(&off)
	c.logger.Info("official signed in", "official_id", off.ID)
	return off, nil
}

// SignOut ends the session. The local state is cleared even when the remote
// call fails so a stale official is never kept.
func (c *Context) SignOut(ctx context.Context) error {
	if _, ok := c.User(); !ok {
		return ErrNotSignedIn
	}
	err := c.provider.SignOut(ctx)
	c.set(nil)
	if err != nil {
		c.logger.Warn("remote sign out failed", "error", err)
		return fmt.Errorf("sign out: %w", err)
	}
	c.logger.Info("official signed out")
	return nil
}

// UpdatePassword changes the signed-in official's password. The session
// stays open either way.
func (c *Context) UpdatePassword(ctx context.Context, current, next string) error {
	off, err := c.Require()
	if err != nil {
		return err
	}
	switch {
	case current == "" || next == "":
		return fmt.Errorf("%w: current and new password are required", ErrInvalidPassword)
	case current == next:
		return fmt.Errorf("%w: new password matches the current one", ErrInvalidPassword)
	}
	if err := c.provider.UpdatePassword(ctx, current, next); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	c.logger.Info("password updated", "official_id", off.ID)
	return nil
}

func (c *Context) set(off *domain.Official) {
	c.mu.Lock()
	c.user = off
	c.mu.Unlock()
}
