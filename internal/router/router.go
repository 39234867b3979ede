package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/meditrack/internal/handler/auth"
	"github.com/jwalitptl/meditrack/internal/handler/dashboard"
	"github.com/jwalitptl/meditrack/internal/handler/health"
	"github.com/jwalitptl/meditrack/internal/handler/navigation"
	"github.com/jwalitptl/meditrack/internal/handler/patient"
	"github.com/jwalitptl/meditrack/internal/handler/prometheus"
	"github.com/jwalitptl/meditrack/internal/middleware"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/session"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	AllowedOrigins []string
	HSTS           bool
	CookieName     string
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth       *auth.Handler
	Patient    *patient.Handler
	Navigation *navigation.Handler
	Dashboard  *dashboard.Handler
	Health     *health.Handler
	Metrics    *prometheus.Handler
}

type Router struct {
	engine   *gin.Engine
	sessions *session.Manager
	handlers Handlers
	config   RouterConfig
}

func NewRouter(sessions *session.Manager, handlers Handlers, m *metrics.Metrics, logger zerolog.Logger, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.SecurityHeaders(middleware.SecurityConfig{HSTS: config.HSTS}),
		middleware.CORS(config.AllowedOrigins),
	)
	if m != nil {
		engine.Use(middleware.Metrics(m))
	}
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:   engine,
		sessions: sessions,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	if r.handlers.Metrics != nil {
		r.handlers.Metrics.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")
	api.Use(middleware.Actor())

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(middleware.Authenticate(r.sessions, r.config.CookieName))

	r.handlers.Auth.RegisterRoutes(api, protected)
	r.handlers.Navigation.RegisterRoutes(protected)
	r.handlers.Dashboard.RegisterRoutes(protected)

	clinical := protected.Group("")
	clinical.Use(middleware.RequireRole(model.RoleAdmin, model.RoleDoctor, model.RoleNurse))
	r.handlers.Patient.RegisterRoutes(clinical)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
