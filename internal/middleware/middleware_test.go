package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/meditrack/internal/apiclient"
	"github.com/jwalitptl/meditrack/internal/config"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/service/audit"
	"github.com/jwalitptl/meditrack/internal/session"
	"github.com/jwalitptl/meditrack/pkg/auth"
	"github.com/jwalitptl/meditrack/pkg/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("password123")
	require.NoError(t, err)

	provider, err := session.NewLocalProvider([]config.LocalUser{
		{Username: "nurse", PasswordHash: hash, Role: "nurse", Active: true},
	}, hasher, time.Hour)
	require.NoError(t, err)

	tokens := auth.NewJWTService("secret", "meditrack", time.Hour)
	return session.NewManager(provider, session.NewMemoryStore(time.Minute), tokens, time.Hour, nil, nil, zerolog.Nop())
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
	assert.Equal(t, w.Header().Get(HeaderXRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w = serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
}

func TestAuthenticate(t *testing.T) {
	mgr := newManager(t)
	ticket, err := mgr.Login(context.Background(), model.Credentials{Username: "nurse", Password: "password123"})
	require.NoError(t, err)

	var seenToken string
	var seenActor audit.Actor
	r := gin.New()
	r.Use(RequestID(), Actor(), Authenticate(mgr, "sid"))
	r.GET("/", func(c *gin.Context) {
		seenToken = apiclient.TokenFromContext(c.Request.Context())
		seenActor = audit.ActorFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+ticket.Token)
	w = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ticket.Session.Token(), seenToken)
	assert.Equal(t, "nurse", seenActor.Username)
	assert.Equal(t, "nurse", seenActor.Role)
	assert.NotEmpty(t, seenActor.RequestID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: ticket.Token})
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuthenticate(t *testing.T) {
	mgr := newManager(t)
	r := gin.New()
	r.Use(OptionalAuthenticate(mgr, "sid"))
	r.GET("/", func(c *gin.Context) {
		assert.Nil(t, CurrentSession(c))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "garbage"})
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireRole(t *testing.T) {
	mgr := newManager(t)
	ticket, err := mgr.Login(context.Background(), model.Credentials{Username: "nurse", Password: "password123"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(Authenticate(mgr, "sid"))
	r.GET("/admin", RequireRole(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/clinical", RequireRole(model.RoleAdmin, model.RoleNurse), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+ticket.Token)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/clinical", nil)
	req.Header.Set("Authorization", "Bearer "+ticket.Token)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2})
	r := gin.New()
	r.Use(limiter.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		codes = append(codes, serve(r, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityConfig{HSTS: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}
