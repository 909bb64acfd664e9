package branches

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/db"
)

// Repository persists branches.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filter access.Filter, q ListQuery) ([]Branch, error)
	Get(ctx context.Context, id string) (Branch, error)
	Create(ctx context.Context, b Branch) error
	Update(ctx context.Context, b Branch) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL implementation.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectBranch = `
SELECT b.id, b.name, COALESCE(b.address, ''), COALESCE(b.phone, ''), b.is_active,
       (SELECT COUNT(*) FROM users u WHERE u.branch_id = b.id),
       b.created_at, b.updated_at
FROM branches b
`

func scanBranch(row pgx.Row) (Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.Phone, &b.IsActive, &b.UserCount, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *repository) List(ctx context.Context, filter access.Filter, q ListQuery) ([]Branch, error) {
	where, args := filter.Where("b.id", 1)
	if !q.IncludeInactive {
		where += " AND b.is_active"
	}
	rows, err := r.db.Query(ctx, selectBranch+" WHERE "+where+" ORDER BY b.name", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Branch, error) {
		return scanBranch(row)
	})
}

func (r *repository) Get(ctx context.Context, id string) (Branch, error) {
	b, err := scanBranch(r.db.QueryRow(ctx, selectBranch+" WHERE b.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, ErrNotFound
	}
	return b, err
}

func (r *repository) Create(ctx context.Context, b Branch) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO branches (id, name, address, phone, is_active, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`,
		b.ID, b.Name, b.Address, b.Phone, b.IsActive, b.CreatedAt, b.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateName
	}
	return err
}

func (r *repository) Update(ctx context.Context, b Branch) error {
	tag, err := r.db.Exec(ctx, `
UPDATE branches
SET name = $2, address = NULLIF($3, ''), phone = NULLIF($4, ''), is_active = $5, updated_at = $6
WHERE id = $1`,
		b.ID, b.Name, b.Address, b.Phone, b.IsActive, b.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
