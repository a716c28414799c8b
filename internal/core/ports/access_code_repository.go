package ports

import (
	"context"
	"time"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// AccessCodeMatch selects access code records. Zero-valued fields do not
// constrain the match.
type AccessCodeMatch struct {
	ID     string
	Role   domain.Role
	Code   string
	Status domain.CodeStatus
}

// AccessCodeChange is the set of fields a transition writes. Status is
// always written; nil/empty optional fields are left untouched.
type AccessCodeChange struct {
	Status    domain.CodeStatus
	ExpiresAt *time.Time
	UsedAt    *time.Time
	UsedBy    string
}

// FindOptions controls ordering and size of a Find.
type FindOptions struct {
	NewestFirst bool  // order by created_at descending
	Limit       int64 // 0 = unlimited
}

// AccessCodeRepository is the credential store. It is the only component
// allowed to mutate access code state, and every mutation other than Insert
// is a conditional write.
type AccessCodeRepository interface {
	// Insert appends a record and returns its ID. It fails with
	// domain.ErrActiveCodeExists when the role already has an active record.
	Insert(ctx context.Context, code *domain.AccessCode) (string, error)

	// TransitionOne atomically applies change to at most one record matching
	// match and reports how many records were modified (0 or 1). Concurrent
	// callers racing on the same record observe exactly one 1.
	TransitionOne(ctx context.Context, match AccessCodeMatch, change AccessCodeChange) (int64, error)

	// TransitionAll applies change to every record matching match.
	TransitionAll(ctx context.Context, match AccessCodeMatch, change AccessCodeChange) (int64, error)

	// Find is a read-only projection.
	Find(ctx context.Context, match AccessCodeMatch, opts FindOptions) ([]*domain.AccessCode, error)
}

// TxRunner runs fn inside a multi-record transaction when the store supports
// one. Implementations without transactions call fn directly.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunnerFunc adapts a function to TxRunner.
type TxRunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TxRunnerFunc) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoTx runs fn without a transaction.
var NoTx = TxRunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
