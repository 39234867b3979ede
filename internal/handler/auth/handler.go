package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/meditrack/internal/handler"
	"github.com/jwalitptl/meditrack/internal/listview"
	"github.com/jwalitptl/meditrack/internal/middleware"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/session"
	"github.com/jwalitptl/meditrack/pkg/httputil"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	sessions *session.Manager
	views    *listview.Registry
	cookie   CookieConfig
}

func NewHandler(sessions *session.Manager, views *listview.Registry, cookie CookieConfig) *Handler {
	return &Handler{
		sessions: sessions,
		views:    views,
		cookie:   cookie,
	}
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// MeResponse describes the signed-in user and the role checks the front
// end gates on.
type MeResponse struct {
	User     model.User `json:"user"`
	Role     model.Role `json:"role"`
	IsAdmin  bool       `json:"isAdmin"`
	IsDoctor bool       `json:"isDoctor"`
	IsNurse  bool       `json:"isNurse"`
}

// RegisterRoutes mounts the public auth routes on r and the session-only
// ones on protected.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, protected *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", middleware.OptionalAuthenticate(h.sessions, h.cookie.Name), h.Logout)
	}
	protected.GET("/auth/me", h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var creds model.Credentials
	if err := c.ShouldBind(&creds); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	ticket, err := h.sessions.Login(c.Request.Context(), creds)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.setCookie(c, ticket.Token, int(time.Until(ticket.ExpiresAt).Seconds()))
	httputil.RespondWithSuccess(c, http.StatusOK, LoginResponse{
		Token:     ticket.Token,
		ExpiresAt: ticket.ExpiresAt,
		User:      *ticket.Session.CurrentUser(),
	})
}

// Logout always succeeds, signed in or not.
func (h *Handler) Logout(c *gin.Context) {
	if s := middleware.CurrentSession(c); s != nil {
		h.views.Drop(s.ID.String())
		h.sessions.Logout(c.Request.Context(), s)
	}
	h.setCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

// Me re-resolves the identity with the upstream so a revoked token ends
// the session here too.
func (h *Handler) Me(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if err := h.sessions.Refresh(c.Request.Context(), s); err != nil {
		h.views.Drop(s.ID.String())
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, MeResponse{
		User:     *s.CurrentUser(),
		Role:     s.Role(),
		IsAdmin:  s.IsAdmin(),
		IsDoctor: s.IsDoctor(),
		IsNurse:  s.IsNurse(),
	})
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
