package ports

import (
	"context"
	"time"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// ConsumeInput is the (role, code) pair presented by a registrant.
type ConsumeInput struct {
	Role             domain.Role
	Code             string
	ConsumerIdentity string
}

// ConsumptionResult is returned after a successful single-use transition.
type ConsumptionResult struct {
	Consumed *domain.AccessCode
	// Next is the auto-rotated replacement, nil when rotation did not happen.
	Next *domain.AccessCode
}

// ActiveAccessCode is the observability view of a role's current code.
type ActiveAccessCode struct {
	Role          domain.Role
	Code          string
	Status        domain.CodeStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	TimeRemaining time.Duration
}

// HistoryQuery carries the parameters of a history listing.
type HistoryQuery struct {
	Limit  int               // <= 0 means the default (50); capped at 200
	Role   domain.Role       // optional
	Status domain.CodeStatus // optional
}

// IssuanceService mints and revokes access codes.
type IssuanceService interface {
	Generate(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error)
	Revoke(ctx context.Context, code, actor string) error
}

// ConsumptionService validates and consumes presented codes.
type ConsumptionService interface {
	ValidateAndConsume(ctx context.Context, in ConsumeInput) (*ConsumptionResult, error)
}

// QueryService provides read-only views of access codes.
type QueryService interface {
	ListActive(ctx context.Context) ([]ActiveAccessCode, error)
	ListHistory(ctx context.Context, q HistoryQuery) ([]*domain.AccessCode, error)
}
