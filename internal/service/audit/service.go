package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/pkg/messaging"
	"github.com/jwalitptl/meditrack/pkg/metrics"
)

const publishTimeout = 2 * time.Second

// Service publishes audit events to the broker; the worker persists them.
// A nil *Service is valid and records nothing.
type Service struct {
	broker  messaging.Broker
	channel string
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(broker messaging.Broker, channel string, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		broker:  broker,
		channel: channel,
		metrics: m,
		logger:  logger.With().Str("component", "audit").Logger(),
		now:     time.Now,
	}
}

// Log records action on the entity for the actor found in ctx. Publishing
// failures are logged and counted, never returned: auditing must not fail
// the user's request.
func (s *Service) Log(ctx context.Context, action, entityType, entityID string, metadata interface{}) {
	if s == nil || s.broker == nil {
		return
	}

	actor := ActorFromContext(ctx)
	event := model.AuditEvent{
		ID:         uuid.New(),
		Actor:      actor.Username,
		Role:       actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		RequestID:  actor.RequestID,
		OccurredAt: s.now().UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn().Err(err).Str("action", action).Msg("dropping unencodable audit metadata")
		} else {
			event.Metadata = raw
		}
	}

	// The request context may already be cancelled when the response is
	// written; the event still has to go out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.broker.Publish(pubCtx, s.channel, event); err != nil {
		if s.metrics != nil {
			s.metrics.AuditEventsFailed.Inc()
		}
		s.logger.Error().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("failed to publish audit event")
		return
	}
	if s.metrics != nil {
		s.metrics.AuditEventsPublished.Inc()
	}
}
