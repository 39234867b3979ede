package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

// Create inserts the event. Redelivered events are ignored.
func (r *auditRepository) Create(ctx context.Context, event *model.AuditEvent) error {
	query := `
        INSERT INTO audit_logs (
            id, actor, role, action, entity_type, entity_id,
            metadata, ip_address, user_agent, request_id, occurred_at
        ) VALUES (
            :id, :actor, :role, :action, :entity_type, :entity_id,
            :metadata, :ip_address, :user_agent, :request_id, :occurred_at
        )
        ON CONFLICT (id) DO NOTHING
    `

	if len(event.Metadata) == 0 {
		event.Metadata = json.RawMessage(`{}`)
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
		return nil
	})
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]*model.AuditEvent, int64, error) {
	where, args := auditWhere(filter)
	baseQuery := "FROM audit_logs" + where

	var total int64
	if err := r.GetDB().GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := "SELECT * " + baseQuery + fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var events []*model.AuditEvent
	if err := r.GetDB().SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return events, total, nil
}

func auditWhere(f repository.AuditFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}
