package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/errors"
)

// IdentityProvider authenticates credentials and resolves existing tokens.
type IdentityProvider interface {
	Authenticate(ctx context.Context, creds model.Credentials) (*model.Identity, error)
	Resolve(ctx context.Context, token string) (*model.Identity, error)
}

// Context holds the signed-in user of one dashboard session. It is passed
// by reference to whatever needs the identity; there is no global instance.
type Context struct {
	mu       sync.RWMutex
	provider IdentityProvider
	identity *model.Identity
	loading  bool
	now      func() time.Time
}

// New returns an unauthenticated context that reports IsLoading until the
// first Init, Login or Restore completes.
func New(provider IdentityProvider) *Context {
	return &Context{
		provider: provider,
		loading:  true,
		now:      time.Now,
	}
}

// Init resolves an existing upstream token, as on a page reload. Any
// resolution failure leaves the context signed out.
func (c *Context) Init(ctx context.Context, token string) {
	var identity *model.Identity
	if token != "" {
		resolved, err := c.provider.Resolve(ctx, token)
		if err == nil && resolved != nil {
			if role, err := model.ParseRole(string(resolved.User.Role)); err == nil {
				resolved.User.Role = role
				if resolved.Token == "" {
					resolved.Token = token
				}
				identity = resolved
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
	c.loading = false
}

// Login authenticates creds. On failure the context is left signed out and
// an AuthenticationError is returned.
func (c *Context) Login(ctx context.Context, creds model.Credentials) error {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		c.clear()
		return errors.Authentication("username and password are required", nil)
	}

	identity, err := c.provider.Authenticate(ctx, creds)
	if err != nil {
		c.clear()
		if errors.IsAuthentication(err) {
			return err
		}
		return errors.Authentication("unable to sign in right now", err)
	}

	role, err := model.ParseRole(string(identity.User.Role))
	if err != nil {
		c.clear()
		return errors.Authentication("account has no dashboard access", err)
	}
	identity.User.Role = role

	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
	c.loading = false
	return nil
}

// Logout signs the user out. It cannot fail.
func (c *Context) Logout() {
	c.clear()
}

func (c *Context) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = nil
	c.loading = false
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *Context) CurrentUser() *model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid() {
		return nil
	}
	u := c.identity.User
	return &u
}

func (c *Context) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valid()
}

func (c *Context) valid() bool {
	if c.identity == nil {
		return false
	}
	return c.identity.ExpiresAt.IsZero() || c.now().Before(c.identity.ExpiresAt)
}

func (c *Context) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Role is the signed-in user's role, or "" when signed out.
func (c *Context) Role() model.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid() {
		return ""
	}
	return c.identity.User.Role
}

func (c *Context) IsAdmin() bool  { return c.Role() == model.RoleAdmin }
func (c *Context) IsDoctor() bool { return c.Role() == model.RoleDoctor }
func (c *Context) IsNurse() bool  { return c.Role() == model.RoleNurse }

// Token is the upstream bearer token of the signed-in user.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid() {
		return ""
	}
	return c.identity.Token
}

// Snapshot returns a copy of the identity for persisting, or nil.
func (c *Context) Snapshot() *model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// Restore installs a previously snapshotted identity.
func (c *Context) Restore(identity *model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if identity != nil {
		id := *identity
		identity = &id
	}
	c.identity = identity
	c.loading = false
}
