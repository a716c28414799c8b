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

// IssuanceService mints, supersedes and revokes access codes.
type IssuanceService struct {
	repo     ports.AccessCodeRepository
	tx       ports.TxRunner
	audit    ports.AuditSink
	log      zerolog.Logger
	now      func() time.Time
	generate func() (string, error)
}

// IssuanceOption customises an IssuanceService.
type IssuanceOption func(*IssuanceService)

// WithIssuanceClock overrides the time source.
func WithIssuanceClock(now func() time.Time) IssuanceOption {
	return func(s *IssuanceService) { s.now = now }
}

// WithCodeGenerator overrides the random code source.
func WithCodeGenerator(gen func() (string, error)) IssuanceOption {
	return func(s *IssuanceService) { s.generate = gen }
}

// NewIssuanceService returns an IssuanceService. A nil tx runs without
// transactions; a nil audit sink discards events.
func NewIssuanceService(
	repo ports.AccessCodeRepository,
	tx ports.TxRunner,
	audit ports.AuditSink,
	log zerolog.Logger,
	opts ...IssuanceOption,
) *IssuanceService {
	if tx == nil {
		tx = ports.NoTx
	}
	if audit == nil {
		audit = discardAudit{}
	}
	s := &IssuanceService{
		repo:     repo,
		tx:       tx,
		audit:    audit,
		log:      log,
		now:      utcNow,
		generate: generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate expires the role's current active code and mints a new one.
// Both writes share a transaction when the store supports it; otherwise a
// failed mint leaves the role without an active code until the next call.
func (s *IssuanceService) Generate(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error) {
	if err := requireRotatingRole(role); err != nil {
		return nil, err
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", domain.ErrInvalidInput)
	}

	var (
		created    *domain.AccessCode
		superseded int64
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()
		n, err := s.repo.TransitionAll(ctx,
			ports.AccessCodeMatch{Role: role, Status: domain.CodeActive},
			ports.AccessCodeChange{Status: domain.CodeExpired, ExpiresAt: &now},
		)
		if err != nil {
			return fmt.Errorf("generate: invalidate active codes: %w", err)
		}
		superseded = n

		created, err = s.mint(ctx, role, issuer)
		return err
	})
	if err != nil {
		return nil, err
	}

	if superseded > 0 {
		s.audit.Record(ctx, domain.AuditEvent{
			Action:     domain.AuditSuperseded,
			Role:       role,
			Actor:      issuer,
			Count:      superseded,
			OccurredAt: created.CreatedAt,
		})
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Action:     domain.AuditIssued,
		Role:       role,
		Code:       created.Code,
		Actor:      issuer,
		Count:      1,
		OccurredAt: created.CreatedAt,
	})

	s.log.Info().
		Str("role", string(role)).
		Str("issuer", issuer).
		Int64("superseded", superseded).
		Time("expires_at", created.ExpiresAt).
		Msg("access code generated")

	return created, nil
}

// Mint inserts a fresh active code for role without touching existing
// records. It is the rotation step used after a successful consumption.
func (s *IssuanceService) Mint(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error) {
	if err := requireRotatingRole(role); err != nil {
		return nil, err
	}
	created, err := s.mint(ctx, role, issuer)
	if err != nil {
		return nil, err
	}

	action := domain.AuditIssued
	if issuer == domain.SystemIssuer {
		action = domain.AuditRotated
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Action:     action,
		Role:       role,
		Code:       created.Code,
		Actor:      issuer,
		Count:      1,
		OccurredAt: created.CreatedAt,
	})
	return created, nil
}

func (s *IssuanceService) mint(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error) {
	code, err := s.generate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	ac := &domain.AccessCode{
		Role:      role,
		Code:      code,
		Status:    domain.CodeActive,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.CodeTTL),
		CreatedBy: issuer,
	}

	id, err := s.repo.Insert(ctx, ac)
	if err != nil {
		if errors.Is(err, domain.ErrActiveCodeExists) {
			return nil, err
		}
		return nil, fmt.Errorf("mint access code: %w", err)
	}
	ac.ID = id
	return ac, nil
}

// Revoke expires an active code. The caller cannot tell a code that never
// existed from one that was already used or expired.
func (s *IssuanceService) Revoke(ctx context.Context, code, actor string) error {
	code = domain.NormalizeCode(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	found, err := s.repo.Find(ctx,
		ports.AccessCodeMatch{Code: code, Status: domain.CodeActive},
		ports.FindOptions{NewestFirst: true, Limit: 1},
	)
	if err != nil {
		return fmt.Errorf("revoke access code: lookup: %w", err)
	}
	if len(found) == 0 {
		return domain.ErrAccessCodeNotFound
	}
	target := found[0]

	now := s.now()
	n, err := s.repo.TransitionOne(ctx,
		ports.AccessCodeMatch{ID: target.ID, Status: domain.CodeActive},
		ports.AccessCodeChange{Status: domain.CodeExpired, ExpiresAt: &now},
	)
	if err != nil {
		return fmt.Errorf("revoke access code: %w", err)
	}
	if n == 0 {
		return domain.ErrAccessCodeNotFound
	}

	s.audit.Record(ctx, domain.AuditEvent{
		Action:     domain.AuditRevoked,
		Role:       target.Role,
		Code:       code,
		Actor:      actor,
		Count:      n,
		OccurredAt: now,
	})
	s.log.Info().Str("role", string(target.Role)).Str("actor", actor).Msg("access code revoked")
	return nil
}

func requireRotatingRole(role domain.Role) error {
	switch {
	case role == "":
		return fmt.Errorf("%w: role is required", domain.ErrInvalidInput)
	case role == domain.RoleManager:
		return fmt.Errorf("%w: role %s is gated by a static secret, not access codes", domain.ErrInvalidInput, role)
	case !role.Rotating():
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	return nil
}

type discardAudit struct{}

func (discardAudit) Record(context.Context, domain.AuditEvent) {}
