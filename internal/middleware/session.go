package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/meditrack/internal/apiclient"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/service/audit"
	"github.com/jwalitptl/meditrack/internal/session"
	"github.com/jwalitptl/meditrack/pkg/errors"
	"github.com/jwalitptl/meditrack/pkg/httputil"
)

const ContextSession = "session"

// Actor attaches the audit actor for the current request. Authenticate
// fills in the user once the session is known.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := audit.Actor{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: c.GetString(ContextRequestID),
		}
		c.Request = c.Request.WithContext(audit.ContextWithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// Authenticate resumes the session named by the session cookie or a Bearer
// token. Requests without a valid session are rejected with 401.
func Authenticate(mgr *session.Manager, cookieName string) gin.HandlerFunc {
	return authenticate(mgr, cookieName, true)
}

// OptionalAuthenticate resumes the session when there is one and lets the
// request through either way.
func OptionalAuthenticate(mgr *session.Manager, cookieName string) gin.HandlerFunc {
	return authenticate(mgr, cookieName, false)
}

func authenticate(mgr *session.Manager, cookieName string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			if required {
				httputil.RespondWithError(c, errors.Authentication("not signed in", nil))
				return
			}
			c.Next()
			return
		}

		s, err := mgr.Resume(c.Request.Context(), token)
		if err != nil {
			if required {
				httputil.RespondWithError(c, err)
				return
			}
			c.Next()
			return
		}

		ctx := apiclient.ContextWithToken(c.Request.Context(), s.Token())
		actor := audit.ActorFromContext(ctx)
		if user := s.CurrentUser(); user != nil {
			actor.Username = user.Username
			actor.Role = user.Role.String()
		}
		ctx = audit.ContextWithActor(ctx, actor)

		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextSession, s)
		c.Next()
	}
}

// RequireRole only lets sessions holding one of roles through.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	allowed := model.RoleSet(roles)
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if s == nil {
			httputil.RespondWithError(c, errors.Authentication("not signed in", nil))
			return
		}
		if !allowed.Contains(s.Role()) {
			httputil.RespondWithError(c, errors.Forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}

// CurrentSession returns the session stored by Authenticate, if any.
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

func sessionToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}
