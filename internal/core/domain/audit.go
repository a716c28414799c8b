package domain

import "time"

// AuditAction names what happened to an access code.
type AuditAction string

const (
	AuditIssued     AuditAction = "issued"
	AuditRotated    AuditAction = "rotated"
	AuditSuperseded AuditAction = "superseded"
	AuditConsumed   AuditAction = "consumed"
	AuditExpired    AuditAction = "expired"
	AuditRevoked    AuditAction = "revoked"
)

// AuditEvent records a single access code lifecycle step.
type AuditEvent struct {
	ID         string
	Action     AuditAction
	Role       Role
	Code       string // empty for bulk supersession
	Actor      string
	Count      int64 // records affected, for bulk actions
	OccurredAt time.Time
}
