package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/meditrack/internal/model"
)

// AuditFilter narrows an audit log listing. Zero fields are ignored.
type AuditFilter struct {
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

type (
	AuditRepository interface {
		Create(ctx context.Context, event *model.AuditEvent) error
		List(ctx context.Context, filter AuditFilter) ([]*model.AuditEvent, int64, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)
