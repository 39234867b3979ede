package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/meditrack/internal/apiclient"
	"github.com/jwalitptl/meditrack/internal/config"
	"github.com/jwalitptl/meditrack/internal/dashboard"
	authhandler "github.com/jwalitptl/meditrack/internal/handler/auth"
	dashboardhandler "github.com/jwalitptl/meditrack/internal/handler/dashboard"
	"github.com/jwalitptl/meditrack/internal/handler/health"
	"github.com/jwalitptl/meditrack/internal/handler/navigation"
	patienthandler "github.com/jwalitptl/meditrack/internal/handler/patient"
	promhandler "github.com/jwalitptl/meditrack/internal/handler/prometheus"
	"github.com/jwalitptl/meditrack/internal/listview"
	"github.com/jwalitptl/meditrack/internal/router"
	"github.com/jwalitptl/meditrack/internal/service/audit"
	patientservice "github.com/jwalitptl/meditrack/internal/service/patient"
	"github.com/jwalitptl/meditrack/internal/session"
	"github.com/jwalitptl/meditrack/pkg/auth"
	"github.com/jwalitptl/meditrack/pkg/logger"
	"github.com/jwalitptl/meditrack/pkg/messaging"
	"github.com/jwalitptl/meditrack/pkg/messaging/redis"
	"github.com/jwalitptl/meditrack/pkg/metrics"
	"github.com/jwalitptl/meditrack/pkg/security"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "meditrack-api",
		Short: "MediTrack dashboard API",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(hashPasswordCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

// hashPasswordCmd prints a bcrypt hash for an auth.users entry.
func hashPasswordCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash a password for a local user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost := 0
			if cfg, err := config.LoadConfig(*configFile); err == nil {
				cost = cfg.Auth.BcryptCost
			}
			hash, err := security.NewBcryptHasher(cost).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func runServer(cfg *config.Config) error {
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("meditrack", reg)

	api, err := apiclient.New(apiclient.Config{
		BaseURL:          cfg.Upstream.BaseURL,
		Timeout:          cfg.Upstream.Timeout,
		BreakerFailures:  cfg.Upstream.BreakerFailures,
		BreakerOpenTime:  cfg.Upstream.BreakerOpenTime,
		BreakerHalfOpens: cfg.Upstream.BreakerHalfOpens,
	}, m, log)
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	var redisClient *goredis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redis.NewClient(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			return err
		}
	}

	// The redis broker owns the client and closes it.
	var broker messaging.Broker
	if redisClient != nil {
		broker = redis.NewRedisBroker(redisClient, log)
	} else {
		log.Warn().Msg("no redis configured; audit events stay in process")
		broker = messaging.NewMemoryBroker()
	}
	defer broker.Close()

	auditor := audit.NewService(broker, cfg.Audit.Channel, m, log)
	patients := patientservice.NewService(api, auditor, log)

	provider, err := newProvider(cfg, api)
	if err != nil {
		return err
	}
	store, err := newStore(cfg, redisClient)
	if err != nil {
		return err
	}

	secret := cfg.Session.Secret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		log.Warn().Msg("session.secret not set; using a random secret, sessions end on restart")
	}
	tokens := auth.NewJWTService(secret, cfg.Session.Issuer, cfg.Session.TTL)
	sessions := session.NewManager(provider, store, tokens, cfg.Session.TTL, auditor, m, log)

	views := listview.NewRegistry(patients, listview.Options{
		PageSize:     cfg.List.PageSize,
		FetchTimeout: cfg.List.FetchTimeout,
		Metrics:      m,
		Logger:       log.With().Str("component", "listview").Logger(),
	}, cfg.List.IdleTTL)

	checks := map[string]health.Pinger{}
	if redisClient != nil {
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	mode := gin.ReleaseMode
	if cfg.IsDev() {
		mode = gin.DebugMode
	}
	r := router.NewRouter(sessions, router.Handlers{
		Auth:       authhandler.NewHandler(sessions, views, authhandler.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}),
		Patient:    patienthandler.NewHandler(patients, views, cfg.List.FetchTimeout, log),
		Navigation: navigation.NewHandler(),
		Dashboard:  dashboardhandler.NewHandler(dashboard.NewBuilder(patients, cfg.List.FetchTimeout, log)),
		Health:     health.NewHandler(api, checks),
		Metrics:    promhandler.New(reg),
	}, m, log, router.RouterConfig{
		Mode:           mode,
		RateLimit:      rate.Limit(cfg.Security.RequestsPerSecond),
		RateBurst:      cfg.Security.Burst,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		HSTS:           cfg.Session.CookieSecure,
		CookieName:     cfg.Session.CookieName,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("upstream", cfg.Upstream.BaseURL).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}

func newProvider(cfg *config.Config, api *apiclient.Client) (session.IdentityProvider, error) {
	if cfg.Auth.Provider == "local" {
		provider, err := session.NewLocalProvider(cfg.Auth.Users, security.NewBcryptHasher(cfg.Auth.BcryptCost), cfg.Session.TTL)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	return session.NewRemoteProvider(api), nil
}

func newStore(cfg *config.Config, client *goredis.Client) (session.Store, error) {
	if cfg.Session.Store != "redis" {
		return session.NewMemoryStore(time.Minute), nil
	}
	if client == nil {
		return nil, errors.New("redis session store requires redis.url")
	}
	enc, err := security.NewAESEncryptorFromSecret(cfg.Session.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session.encryption_key: %w", err)
	}
	return session.NewRedisStore(client, enc), nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := crypto_rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
