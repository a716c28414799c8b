package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

const (
	uniqueViolation    = "23505"
	activePerRoleIndex = "one_active_per_role"
	accessCodeColumns  = "id::text, role, code, status, created_at, expires_at, used_at, used_by, created_by"
)

// AccessCodeRepository implements ports.AccessCodeRepository and
// ports.TxRunner on PostgreSQL.
type AccessCodeRepository struct {
	pool *pgxpool.Pool
}

func NewAccessCodeRepository(pool *pgxpool.Pool) *AccessCodeRepository {
	return &AccessCodeRepository{pool: pool}
}

func (r *AccessCodeRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.pool, fn)
}

func (r *AccessCodeRepository) Insert(ctx context.Context, code *domain.AccessCode) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	const q = `
		INSERT INTO access_codes (role, code, status, created_at, expires_at, used_at, used_by, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text`

	var id string
	err := conn(ctx, r.pool).QueryRow(ctx, q,
		string(code.Role), code.Code, string(code.Status),
		code.CreatedAt.UTC(), code.ExpiresAt.UTC(), code.UsedAt, code.UsedBy, code.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activePerRoleIndex {
			return "", domain.ErrActiveCodeExists
		}
		return "", fmt.Errorf("insert access code: %w", err)
	}
	return id, nil
}

// TransitionOne locks the newest matching row and rewrites it. A concurrent
// writer that lost the lock re-evaluates the predicate after the winner
// commits, so it sees zero rows.
func (r *AccessCodeRepository) TransitionOne(ctx context.Context, match ports.AccessCodeMatch, change ports.AccessCodeChange) (int64, error) {
	if err := domain.CheckTransition(match.Status, change.Status); err != nil {
		return 0, err
	}
	set, args := setClause(change, nil)
	where, args, err := whereClause(match, args)
	if err != nil {
		return 0, err
	}

	q := "UPDATE access_codes SET " + set +
		" WHERE id = (SELECT id FROM access_codes WHERE " + where +
		" ORDER BY created_at DESC, seq DESC LIMIT 1 FOR UPDATE)"

	return r.exec(ctx, q, args)
}

func (r *AccessCodeRepository) TransitionAll(ctx context.Context, match ports.AccessCodeMatch, change ports.AccessCodeChange) (int64, error) {
	if err := domain.CheckTransition(match.Status, change.Status); err != nil {
		return 0, err
	}
	set, args := setClause(change, nil)
	where, args, err := whereClause(match, args)
	if err != nil {
		return 0, err
	}

	return r.exec(ctx, "UPDATE access_codes SET "+set+" WHERE "+where, args)
}

func (r *AccessCodeRepository) exec(ctx context.Context, q string, args []any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("transition access code: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *AccessCodeRepository) Find(ctx context.Context, match ports.AccessCodeMatch, opts ports.FindOptions) ([]*domain.AccessCode, error) {
	where, args, err := whereClause(match, nil)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT " + accessCodeColumns + " FROM access_codes WHERE " + where)
	if opts.NewestFirst {
		b.WriteString(" ORDER BY created_at DESC, seq DESC")
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := conn(ctx, r.pool).Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find access codes: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanAccessCode)
	if err != nil {
		return nil, fmt.Errorf("decode access codes: %w", err)
	}
	return out, nil
}

func scanAccessCode(row pgx.CollectableRow) (*domain.AccessCode, error) {
	var (
		c            domain.AccessCode
		role, status string
	)
	if err := row.Scan(&c.ID, &role, &c.Code, &status, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt, &c.UsedBy, &c.CreatedBy); err != nil {
		return nil, err
	}
	c.Role = domain.Role(role)
	c.Status = domain.CodeStatus(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	if c.UsedAt != nil {
		t := c.UsedAt.UTC()
		c.UsedAt = &t
	}
	return &c, nil
}

// whereClause renders match as a conjunction, numbering placeholders after
// the ones already in args. An empty match selects every row.
func whereClause(m ports.AccessCodeMatch, args []any) (string, []any, error) {
	var conds []string
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}

	if m.ID != "" {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			return "", nil, fmt.Errorf("access code id %q: %w", m.ID, err)
		}
		add("id", id)
	}
	if m.Role != "" {
		add("role", string(m.Role))
	}
	if m.Code != "" {
		add("code", m.Code)
	}
	if m.Status != "" {
		add("status", string(m.Status))
	}

	if len(conds) == 0 {
		return "TRUE", args, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

// setClause renders the assignments for a transition.
func setClause(ch ports.AccessCodeChange, args []any) (string, []any) {
	var sets []string
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}

	add("status", string(ch.Status))
	if ch.ExpiresAt != nil {
		add("expires_at", ch.ExpiresAt.UTC())
	}
	if ch.UsedAt != nil {
		add("used_at", ch.UsedAt.UTC())
	}
	if ch.UsedBy != "" {
		add("used_by", ch.UsedBy)
	}
	return strings.Join(sets, ", "), args
}
