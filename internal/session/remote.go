package session

import (
	"context"
	"net/url"
	"time"

	"github.com/jwalitptl/meditrack/internal/apiclient"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/errors"
)

// UpstreamAuth is the part of the API client used for authentication.
type UpstreamAuth interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}) error
	PostForm(ctx context.Context, path string, form url.Values, out interface{}) error
}

// RemoteProvider signs in against the upstream /auth endpoints.
type RemoteProvider struct {
	api UpstreamAuth
	now func() time.Time
}

func NewRemoteProvider(api UpstreamAuth) *RemoteProvider {
	return &RemoteProvider{api: api, now: time.Now}
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        model.User `json:"user"`
}

func (p *RemoteProvider) Authenticate(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	var resp tokenResponse
	if err := p.api.PostForm(ctx, "/auth/login", form, &resp); err != nil {
		if errors.IsValidation(err) || errors.IsAuthentication(err) {
			return nil, errors.Authentication("incorrect username or password", err)
		}
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.Fetch("login response has no token", nil)
	}

	identity := &model.Identity{User: resp.User, Token: resp.AccessToken}
	if resp.ExpiresIn > 0 {
		identity.ExpiresAt = p.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return identity, nil
}

func (p *RemoteProvider) Resolve(ctx context.Context, token string) (*model.Identity, error) {
	var user model.User
	if err := p.api.Get(apiclient.ContextWithToken(ctx, token), "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &model.Identity{User: user, Token: token}, nil
}
