package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
	"github.com/farmledger/access-codes/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *stubAudit) Record(_ context.Context, e domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *stubAudit) actions() []domain.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

// ---------------------------------------------------------------------------
// Helper: wire the three services over one memory store.
// ---------------------------------------------------------------------------

type codeFixture struct {
	repo    *memory.AccessCodeRepository
	clock   *fakeClock
	audit   *stubAudit
	issue   *IssuanceService
	consume ports.ConsumptionService
	query   *QueryService
}

func newCodeFixture(t *testing.T, opts ...IssuanceOption) *codeFixture {
	t.Helper()

	f := &codeFixture{
		repo:  memory.NewAccessCodeRepository(),
		clock: newFakeClock(),
		audit: &stubAudit{},
	}
	opts = append([]IssuanceOption{WithIssuanceClock(f.clock.Now)}, opts...)
	f.issue = NewIssuanceService(f.repo, f.repo, f.audit, zerolog.Nop(), opts...)
	f.consume = NewConsumptionService(f.repo, f.issue, f.audit, zerolog.Nop(), f.clock.Now)
	f.query = NewQueryService(f.repo, f.clock.Now)
	return f
}

func (f *codeFixture) find(t *testing.T, match ports.AccessCodeMatch) []*domain.AccessCode {
	t.Helper()
	codes, err := f.repo.Find(context.Background(), match, ports.FindOptions{NewestFirst: true})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	return codes
}

func (f *codeFixture) byCode(t *testing.T, code string) *domain.AccessCode {
	t.Helper()
	codes := f.find(t, ports.AccessCodeMatch{Code: code})
	if len(codes) != 1 {
		t.Fatalf("expected exactly one record for %s, got %d", code, len(codes))
	}
	return codes[0]
}

func (f *codeFixture) activeCount(t *testing.T, role domain.Role) int {
	t.Helper()
	return len(f.find(t, ports.AccessCodeMatch{Role: role, Status: domain.CodeActive}))
}

func sequenceGenerator(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}
