package ports

import (
	"context"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// AuditSink receives lifecycle events. Record must not block on I/O and
// never fails the calling operation.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error
}

// AttemptLimiter throttles repeated access code failures per key.
type AttemptLimiter interface {
	// Acquire reserves an attempt before the code is checked and returns
	// domain.ErrTooManyAttempts once the key is over budget.
	Acquire(ctx context.Context, key string) error
	// Release gives back a reserved attempt that did not fail authentication.
	Release(ctx context.Context, key string) error
	// Reset clears the key after a successful attempt.
	Reset(ctx context.Context, key string) error
}
