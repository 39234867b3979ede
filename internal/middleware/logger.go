package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger logs one line per request. Bodies and query strings are never
// logged: both can carry patient data.
func Logger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		l := logger.With().
			Str("request_id", c.GetString(ContextRequestID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("user_agent", c.Request.UserAgent())
		if s := CurrentSession(c); s != nil {
			if user := s.CurrentUser(); user != nil {
				l = l.Str("user", user.Username)
			}
		}
		event := l.Logger()

		switch {
		case status >= 500:
			event.Error().Str("error", c.Errors.ByType(gin.ErrorTypePrivate).String()).Msg("Server error")
		case status >= 400:
			event.Warn().Msg("Client error")
		default:
			event.Info().Msg("Request processed")
		}
	}
}
