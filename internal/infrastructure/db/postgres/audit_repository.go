package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmledger/access-codes/internal/core/domain"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// InsertAuditEvent stores one lifecycle event; a replayed event_id is ignored.
func (r *AuditRepository) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	id, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("audit event id %q: %w", event.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	const q = `
		INSERT INTO access_code_events (event_id, action, role, code, actor, count, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`

	_, err = conn(ctx, r.pool).Exec(ctx, q,
		id, string(event.Action), string(event.Role), event.Code, event.Actor, event.Count, event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
