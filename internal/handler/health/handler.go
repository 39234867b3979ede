package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
)

// Breaker reports the state of the upstream circuit breaker.
type Breaker interface {
	BreakerState() gobreaker.State
}

// Pinger is an optional dependency checked on readiness, such as Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	upstream Breaker
	checks   map[string]Pinger
}

func NewHandler(upstream Breaker, checks map[string]Pinger) *Handler {
	return &Handler{
		upstream: upstream,
		checks:   checks,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck reports DOWN while the upstream breaker is open or a
// dependency fails to answer.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.upstream != nil {
		if state := h.upstream.BreakerState(); state == gobreaker.StateOpen {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "DOWN",
				"reason":   "Patient API unavailable",
				"upstream": state.String(),
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"reason": name + " unavailable",
			})
			return
		}
	}

	resp := gin.H{"status": "UP"}
	if h.upstream != nil {
		resp["upstream"] = h.upstream.BreakerState().String()
	}
	c.JSON(http.StatusOK, resp)
}
