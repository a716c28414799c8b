// Package memory provides process-local implementations of the store ports.
// They are used by the "memory" store driver and by service tests. The
// mutex here plays the role of the database's single-document atomicity;
// correctness across processes requires the mongo or postgres driver.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

type record struct {
	seq  int64
	code domain.AccessCode
}

// AccessCodeRepository implements ports.AccessCodeRepository in memory.
type AccessCodeRepository struct {
	mu      sync.Mutex
	seq     int64
	records []*record
}

// NewAccessCodeRepository returns an empty repository.
func NewAccessCodeRepository() *AccessCodeRepository {
	return &AccessCodeRepository{}
}

func (r *AccessCodeRepository) Insert(_ context.Context, code *domain.AccessCode) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code.Status == domain.CodeActive {
		for _, rec := range r.records {
			if rec.code.Role == code.Role && rec.code.Status == domain.CodeActive {
				return "", domain.ErrActiveCodeExists
			}
		}
	}

	r.seq++
	rec := &record{seq: r.seq, code: cloneCode(*code)}
	if rec.code.ID == "" {
		rec.code.ID = uuid.NewString()
	}
	r.records = append(r.records, rec)
	return rec.code.ID, nil
}

func (r *AccessCodeRepository) TransitionOne(_ context.Context, match ports.AccessCodeMatch, change ports.AccessCodeChange) (int64, error) {
	if err := domain.CheckTransition(match.Status, change.Status); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if matches(&rec.code, match) {
			apply(&rec.code, change)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *AccessCodeRepository) TransitionAll(_ context.Context, match ports.AccessCodeMatch, change ports.AccessCodeChange) (int64, error) {
	if err := domain.CheckTransition(match.Status, change.Status); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, rec := range r.records {
		if matches(&rec.code, match) {
			apply(&rec.code, change)
			n++
		}
	}
	return n, nil
}

func (r *AccessCodeRepository) Find(_ context.Context, match ports.AccessCodeMatch, opts ports.FindOptions) ([]*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []*record
	for _, rec := range r.records {
		if matches(&rec.code, match) {
			found = append(found, rec)
		}
	}

	if opts.NewestFirst {
		sort.SliceStable(found, func(i, j int) bool {
			a, b := found[i], found[j]
			if !a.code.CreatedAt.Equal(b.code.CreatedAt) {
				return a.code.CreatedAt.After(b.code.CreatedAt)
			}
			return a.seq > b.seq
		})
	}
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}

	out := make([]*domain.AccessCode, 0, len(found))
	for _, rec := range found {
		c := cloneCode(rec.code)
		out = append(out, &c)
	}
	return out, nil
}

// RunInTx runs fn directly; the memory store has no multi-record transactions.
func (r *AccessCodeRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func matches(c *domain.AccessCode, m ports.AccessCodeMatch) bool {
	if m.ID != "" && c.ID != m.ID {
		return false
	}
	if m.Role != "" && c.Role != m.Role {
		return false
	}
	if m.Code != "" && c.Code != m.Code {
		return false
	}
	if m.Status != "" && c.Status != m.Status {
		return false
	}
	return true
}

func apply(c *domain.AccessCode, ch ports.AccessCodeChange) {
	c.Status = ch.Status
	if ch.ExpiresAt != nil {
		c.ExpiresAt = *ch.ExpiresAt
	}
	if ch.UsedAt != nil {
		t := *ch.UsedAt
		c.UsedAt = &t
	}
	if ch.UsedBy != "" {
		by := ch.UsedBy
		c.UsedBy = &by
	}
}

func cloneCode(c domain.AccessCode) domain.AccessCode {
	if c.UsedAt != nil {
		t := *c.UsedAt
		c.UsedAt = &t
	}
	if c.UsedBy != nil {
		by := *c.UsedBy
		c.UsedBy = &by
	}
	return c
}
