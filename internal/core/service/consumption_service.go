package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

// CodeMinter creates the next active code for a role.
type CodeMinter interface {
	Mint(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error)
}

type consumptionService struct {
	repo   ports.AccessCodeRepository
	minter CodeMinter
	audit  ports.AuditSink
	log    zerolog.Logger
	now    func() time.Time
}

// NewConsumptionService returns a ConsumptionService implementation. now may
// be nil to use the wall clock.
func NewConsumptionService(
	repo ports.AccessCodeRepository,
	minter CodeMinter,
	audit ports.AuditSink,
	log zerolog.Logger,
	now func() time.Time,
) ports.ConsumptionService {
	if audit == nil {
		audit = discardAudit{}
	}
	if now == nil {
		now = utcNow
	}
	return &consumptionService{
		repo:   repo,
		minter: minter,
		audit:  audit,
		log:    log,
		now:    now,
	}
}

// ValidateAndConsume performs the single-use transition for a presented
// code and rotates the role to a fresh code.
func (s *consumptionService) ValidateAndConsume(ctx context.Context, in ports.ConsumeInput) (*ports.ConsumptionResult, error) {
	code := domain.NormalizeCode(in.Code)
	identity := strings.TrimSpace(in.ConsumerIdentity)
	switch {
	case in.Role == "":
		return nil, fmt.Errorf("%w: role is required", domain.ErrInvalidInput)
	case !in.Role.Rotating():
		return nil, fmt.Errorf("%w: role %s does not use access codes", domain.ErrInvalidInput, in.Role)
	case code == "":
		return nil, fmt.Errorf("%w: access code is required", domain.ErrInvalidInput)
	case identity == "":
		return nil, fmt.Errorf("%w: consumer identity is required", domain.ErrInvalidInput)
	}

	// 1. Lookup. A plain read; step 3 re-validates atomically.
	found, err := s.repo.Find(ctx,
		ports.AccessCodeMatch{Role: in.Role, Code: code, Status: domain.CodeActive},
		ports.FindOptions{NewestFirst: true, Limit: 1},
	)
	if err != nil {
		return nil, fmt.Errorf("consume: lookup: %w", err)
	}
	if len(found) == 0 {
		return nil, domain.ErrInvalidAccessCode
	}
	record := found[0]

	// 2. Lazy expiry.
	now := s.now()
	if record.ExpiredAt(now) {
		n, err := s.repo.TransitionOne(ctx,
			ports.AccessCodeMatch{ID: record.ID, Status: domain.CodeActive},
			ports.AccessCodeChange{Status: domain.CodeExpired},
		)
		if err != nil {
			return nil, fmt.Errorf("consume: expire: %w", err)
		}
		if n > 0 {
			s.audit.Record(ctx, domain.AuditEvent{
				Action:     domain.AuditExpired,
				Role:       record.Role,
				Code:       record.Code,
				Actor:      identity,
				Count:      n,
				OccurredAt: now,
			})
		}
		return nil, domain.ErrAccessCodeExpired
	}

	// 3. Single-use transition.
	n, err := s.repo.TransitionOne(ctx,
		ports.AccessCodeMatch{ID: record.ID, Status: domain.CodeActive},
		ports.AccessCodeChange{Status: domain.CodeUsed, UsedAt: &now, UsedBy: identity},
	)
	if err != nil {
		return nil, fmt.Errorf("consume: transition: %w", err)
	}
	if n == 0 {
		s.log.Debug().Str("role", string(in.Role)).Msg("access code consumption lost race")
		return nil, domain.ErrInvalidAccessCode
	}

	consumed := *record
	consumed.Status = domain.CodeUsed
	consumed.UsedAt = &now
	consumed.UsedBy = &identity

	s.audit.Record(ctx, domain.AuditEvent{
		Action:     domain.AuditConsumed,
		Role:       consumed.Role,
		Code:       consumed.Code,
		Actor:      identity,
		Count:      1,
		OccurredAt: now,
	})

	// 4. Rotation. The consumption above is final whatever happens here.
	next, err := s.minter.Mint(ctx, in.Role, domain.SystemIssuer)
	switch {
	case errors.Is(err, domain.ErrActiveCodeExists):
		s.log.Info().Str("role", string(in.Role)).Msg("role already has an active code, rotation skipped")
	case err != nil:
		s.log.Error().Err(err).Str("role", string(in.Role)).Msg("access code rotation failed")
	}

	s.log.Info().
		Str("role", string(in.Role)).
		Str("consumer", identity).
		Bool("rotated", next != nil).
		Msg("access code consumed")

	return &ports.ConsumptionResult{Consumed: &consumed, Next: next}, nil
}
