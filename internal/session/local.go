package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/meditrack/internal/config"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/errors"
	"github.com/jwalitptl/meditrack/pkg/security"
)

type localAccount struct {
	hash string
	user model.User
}

// LocalProvider authenticates against users declared in configuration.
// Issued tokens live in memory until they expire.
type LocalProvider struct {
	accounts []localAccount
	hasher   security.PasswordHasher
	tokens   *cache.Cache
	ttl      time.Duration
	now      func() time.Time
}

func NewLocalProvider(users []config.LocalUser, hasher security.PasswordHasher, ttl time.Duration) (*LocalProvider, error) {
	accounts := make([]localAccount, 0, len(users))
	for _, u := range users {
		role, err := model.ParseRole(u.Role)
		if err != nil {
			return nil, errors.Validation("invalid local user "+u.Username, map[string]string{"role": err.Error()}, err)
		}
		id := u.ID
		if id == "" {
			id = u.Username
		}
		accounts = append(accounts, localAccount{
			hash: u.PasswordHash,
			user: model.User{
				ID:       id,
				Username: u.Username,
				Email:    u.Email,
				Role:     role,
				Profile: model.Profile{
					FirstName: u.FirstName,
					LastName:  u.LastName,
					Phone:     u.Phone,
				},
				IsActive: u.Active,
			},
		})
	}

	return &LocalProvider{
		accounts: accounts,
		hasher:   hasher,
		tokens:   cache.New(ttl, 10*time.Minute),
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Authenticate accepts a username or an email address.
func (p *LocalProvider) Authenticate(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	acct, ok := p.find(creds.Username)
	if !ok {
		return nil, errors.Authentication("incorrect username or password", nil)
	}
	if err := p.hasher.Compare(acct.hash, creds.Password); err != nil {
		return nil, errors.Authentication("incorrect username or password", err)
	}
	if !acct.user.IsActive {
		return nil, errors.Authentication("account is disabled", nil)
	}

	now := p.now()
	user := acct.user
	user.LastLogin = &now

	token := uuid.NewString()
	p.tokens.Set(token, user, p.ttl)
	return &model.Identity{User: user, Token: token, ExpiresAt: now.Add(p.ttl)}, nil
}

func (p *LocalProvider) Resolve(ctx context.Context, token string) (*model.Identity, error) {
	v, expiresAt, ok := p.tokens.GetWithExpiration(token)
	if !ok {
		return nil, errors.Authentication("session expired", nil)
	}
	return &model.Identity{User: v.(model.User), Token: token, ExpiresAt: expiresAt}, nil
}

func (p *LocalProvider) find(name string) (localAccount, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range p.accounts {
		if strings.ToLower(a.user.Username) == name || (a.user.Email != "" && strings.ToLower(a.user.Email) == name) {
			return a, true
		}
	}
	return localAccount{}, false
}
