package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/db"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// Repository provides user persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, q ListQuery) ([]User, int, error)
	Get(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectUser = `
SELECT u.id, u.email, u.full_name, u.role, u.branch_id, COALESCE(b.name, ''), u.is_active,
       u.password_hash, u.last_login_at, u.created_at, u.updated_at
FROM users u
LEFT JOIN branches b ON b.id = u.branch_id
`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.BranchID, &u.BranchName, &u.IsActive,
		&u.PasswordHash, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	u.Role = access.Role(role)
	return u, err
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]User, int, error) {
	var (
		conditions = []string{"TRUE"}
		args       []any
	)
	if q.BranchID != "" {
		args = append(args, q.BranchID)
		conditions = append(conditions, fmt.Sprintf("u.branch_id = $%d", len(args)))
	}
	if q.Role != "" {
		args = append(args, string(q.Role))
		conditions = append(conditions, fmt.Sprintf("u.role = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users u"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, perPage := shared.NormalizePage(q.Page, q.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	query := fmt.Sprintf("%s%s ORDER BY u.full_name, u.id LIMIT $%d OFFSET $%d", selectUser, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
	return users, total, err
}

func (r *repository) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUser+" WHERE u.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *repository) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUser+" WHERE LOWER(u.email) = LOWER($1)", email))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *repository) Create(ctx context.Context, u User) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO users (id, email, full_name, role, branch_id, is_active, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.FullName, string(u.Role), u.BranchID, u.IsActive, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return mapWriteError(err)
}

func (r *repository) Update(ctx context.Context, u User) error {
	tag, err := r.db.Exec(ctx, `
UPDATE users
SET full_name = $2, role = $3, branch_id = $4, is_active = $5, password_hash = $6, updated_at = $7
WHERE id = $1`,
		u.ID, u.FullName, string(u.Role), u.BranchID, u.IsActive, u.PasswordHash, u.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrDuplicateEmail
	case db.HasCode(err, db.CodeForeignKeyViolation):
		return ErrUnknownBranch
	default:
		return err
	}
}
