package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/service/audit"
	"github.com/jwalitptl/meditrack/pkg/auth"
	"github.com/jwalitptl/meditrack/pkg/errors"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

// Session is one signed-in browser session.
type Session struct {
	ID uuid.UUID
	*Context
}

// Ticket is what the browser receives after signing in.
type Ticket struct {
	Token     string
	ExpiresAt time.Time
	Session   *Session
}

// Manager issues, resumes and ends dashboard sessions. The browser only
// holds a signed reference; identities stay in the Store.
type Manager struct {
	provider IdentityProvider
	store    Store
	tokens   auth.JWTService
	ttl      time.Duration
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewManager(provider IdentityProvider, store Store, tokens auth.JWTService, ttl time.Duration, auditor *audit.Service, m *metrics.Metrics, logger zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		tokens:   tokens,
		ttl:      ttl,
		auditor:  auditor,
		metrics:  m,
		logger:   logger.With().Str("component", "session").Logger(),
	}
}

func (m *Manager) Login(ctx context.Context, creds model.Credentials) (*Ticket, error) {
	sc := New(m.provider)
	if err := sc.Login(ctx, creds); err != nil {
		m.countLogin("failure")
		m.logger.Info().Str("username", creds.Username).Msg("login failed")
		return nil, err
	}

	id := uuid.New()
	identity := sc.Snapshot()
	if err := m.store.Save(ctx, id, identity, m.ttlFor(identity)); err != nil {
		m.countLogin("error")
		return nil, errors.Internal(err)
	}

	user := identity.User
	token, expiresAt, err := m.tokens.GenerateSessionToken(id, user.Username, user.Role.String())
	if err != nil {
		m.countLogin("error")
		_ = m.store.Delete(ctx, id)
		return nil, errors.Internal(err)
	}

	m.countLogin("success")
	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}
	actorCtx := audit.ContextWithActor(ctx, mergeActor(audit.ActorFromContext(ctx), user))
	m.auditor.Log(actorCtx, model.AuditActionLogin, model.AuditEntitySession, id.String(), nil)

	return &Ticket{Token: token, ExpiresAt: expiresAt, Session: &Session{ID: id, Context: sc}}, nil
}

// Resume loads the session referenced by a signed token.
func (m *Manager) Resume(ctx context.Context, token string) (*Session, error) {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		if stderrors.Is(err, auth.ErrExpiredToken) {
			return nil, errors.Authentication("session expired", err)
		}
		return nil, errors.Authentication("invalid session", err)
	}
	id, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, errors.Authentication("invalid session", err)
	}

	identity, err := m.store.Load(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrSessionNotFound) {
			return nil, errors.Authentication("session expired", err)
		}
		return nil, errors.Internal(err)
	}

	sc := New(m.provider)
	sc.Restore(identity)
	if !sc.IsAuthenticated() {
		m.end(ctx, id)
		return nil, errors.Authentication("session expired", nil)
	}
	return &Session{ID: id, Context: sc}, nil
}

// Refresh re-resolves the upstream token and stores the fresh identity. A
// session whose token no longer resolves is ended.
func (m *Manager) Refresh(ctx context.Context, s *Session) error {
	previous := s.Snapshot()
	if previous == nil {
		return errors.Authentication("not signed in", nil)
	}

	s.Init(ctx, previous.Token)
	if !s.IsAuthenticated() {
		m.end(ctx, s.ID)
		return errors.Authentication("session expired", nil)
	}

	identity := s.Snapshot()
	if identity.ExpiresAt.IsZero() {
		identity.ExpiresAt = previous.ExpiresAt
		s.Restore(identity)
	}
	if err := m.store.Save(ctx, s.ID, identity, m.ttlFor(identity)); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// Logout ends the session. It never fails; store errors are only logged.
func (m *Manager) Logout(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	if user := s.CurrentUser(); user != nil {
		actorCtx := audit.ContextWithActor(ctx, mergeActor(audit.ActorFromContext(ctx), *user))
		m.auditor.Log(actorCtx, model.AuditActionLogout, model.AuditEntitySession, s.ID.String(), nil)
	}
	s.Logout()
	m.end(ctx, s.ID)
}

// end deletes the session and lowers the active gauge. Sessions dropped by
// store TTL never pass through here, so the gauge counts logins minus
// explicit ends.
func (m *Manager) end(ctx context.Context, id uuid.UUID) {
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id.String()).Msg("failed to delete session")
		return
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}
}

// ttlFor caps the session lifetime at the upstream token expiry.
func (m *Manager) ttlFor(identity *model.Identity) time.Duration {
	ttl := m.ttl
	if !identity.ExpiresAt.IsZero() {
		if until := time.Until(identity.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (m *Manager) countLogin(outcome string) {
	if m.metrics != nil {
		m.metrics.Logins.WithLabelValues(outcome).Inc()
	}
}

func mergeActor(a audit.Actor, user model.User) audit.Actor {
	a.Username = user.Username
	a.Role = user.Role.String()
	return a
}
