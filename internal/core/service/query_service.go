package service

import (
	"context"
	"fmt"
	"time"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// QueryService serves read-only views of access codes.
type QueryService struct {
	repo ports.AccessCodeRepository
	now  func() time.Time
}

func NewQueryService(repo ports.AccessCodeRepository, now func() time.Time) *QueryService {
	if now == nil {
		now = utcNow
	}
	return &QueryService{repo: repo, now: now}
}

// ListActive returns one active code per role, newest first within a role.
// Codes past their expiry but not yet touched still show, with zero time
// remaining; listing never transitions state.
func (s *QueryService) ListActive(ctx context.Context) ([]ports.ActiveAccessCode, error) {
	codes, err := s.repo.Find(ctx,
		ports.AccessCodeMatch{Status: domain.CodeActive},
		ports.FindOptions{NewestFirst: true},
	)
	if err != nil {
		return nil, fmt.Errorf("list active codes: %w", err)
	}

	now := s.now()
	seen := make(map[domain.Role]struct{}, len(domain.RotatingRoles))
	out := make([]ports.ActiveAccessCode, 0, len(domain.RotatingRoles))
	for _, c := range codes {
		if _, dup := seen[c.Role]; dup {
			continue
		}
		seen[c.Role] = struct{}{}
		out = append(out, ports.ActiveAccessCode{
			Role:          c.Role,
			Code:          c.Code,
			Status:        c.Status,
			CreatedAt:     c.CreatedAt,
			ExpiresAt:     c.ExpiresAt,
			TimeRemaining: c.RemainingAt(now),
		})
	}
	return out, nil
}

// ListHistory returns codes newest first, capped at q.Limit.
func (s *QueryService) ListHistory(ctx context.Context, q ports.HistoryQuery) ([]*domain.AccessCode, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, q.Status)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	codes, err := s.repo.Find(ctx,
		ports.AccessCodeMatch{Role: q.Role, Status: q.Status},
		ports.FindOptions{NewestFirst: true, Limit: int64(limit)},
	)
	if err != nil {
		return nil, fmt.Errorf("list code history: %w", err)
	}
	return codes, nil
}
