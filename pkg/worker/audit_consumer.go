package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/repository"
	"github.com/jwalitptl/meditrack/pkg/messaging"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

type AuditConsumerConfig struct {
	Channel       string
	RetryAttempts int
	RetryDelay    time.Duration
}

// AuditConsumer persists audit events received from the broker.
type AuditConsumer struct {
	repo    repository.AuditRepository
	broker  messaging.Broker
	config  AuditConsumerConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewAuditConsumer(
	repo repository.AuditRepository,
	broker messaging.Broker,
	config AuditConsumerConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AuditConsumer {
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	return &AuditConsumer{
		repo:    repo,
		broker:  broker,
		config:  config,
		metrics: m,
		logger:  logger.With().Str("worker", "audit_consumer").Logger(),
	}
}

// Run consumes until ctx is cancelled or the subscription closes.
func (c *AuditConsumer) Run(ctx context.Context) error {
	msgs, err := c.broker.Subscribe(ctx, c.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.config.Channel, err)
	}
	c.logger.Info().Str("channel", c.config.Channel).Msg("audit consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("audit consumer shutting down")
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *AuditConsumer) handle(ctx context.Context, raw []byte) {
	var event model.AuditEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		c.fail()
		c.logger.Error().Err(err).Msg("dropping malformed audit event")
		return
	}

	var err error
	for attempt := 0; attempt < c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn().Str("event_id", event.ID.String()).Int("attempt", attempt+1).Err(err).Msg("retrying audit event")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * c.config.RetryDelay):
			}
		}
		if err = c.repo.Create(ctx, &event); err == nil {
			if c.metrics != nil {
				c.metrics.AuditEventsPersisted.Inc()
			}
			return
		}
	}

	c.fail()
	c.logger.Error().Str("event_id", event.ID.String()).Err(err).Msg("failed to persist audit event after retries")
}

func (c *AuditConsumer) fail() {
	if c.metrics != nil {
		c.metrics.AuditEventsFailed.Inc()
	}
}
