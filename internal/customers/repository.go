package customers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/db"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// Repository persists customers.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filter access.Filter, q ListQuery) ([]Customer, int, error)
	Get(ctx context.Context, id string) (Customer, error)
	Create(ctx context.Context, c Customer) error
	Update(ctx context.Context, c Customer) error
	Delete(ctx context.Context, id string) error
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

const selectCustomer = `
SELECT c.id, c.full_name, c.phone_number, COALESCE(c.email, ''), c.branch_id, b.name,
       (SELECT COUNT(*) FROM orders o WHERE o.customer_id = c.id),
       c.created_by, c.updated_by, c.created_at, c.updated_at
FROM customers c
JOIN branches b ON b.id = c.branch_id
`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.FullName, &c.PhoneNumber, &c.Email, &c.BranchID, &c.BranchName,
		&c.OrderCount, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) List(ctx context.Context, filter access.Filter, q ListQuery) ([]Customer, int, error) {
	where, args := filter.Where("c.branch_id", 1)
	conditions := []string{where}
	if q.Search != "" {
		args = append(args, "%"+strings.ToLower(q.Search)+"%")
		pos := strconv.Itoa(len(args))
		conditions = append(conditions, "(LOWER(c.full_name) LIKE $"+pos+" OR c.phone_number LIKE $"+pos+")")
	}
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM customers c"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(q.Page, q.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	query := fmt.Sprintf("%s%s ORDER BY c.full_name, c.id LIMIT $%d OFFSET $%d", selectCustomer, whereClause, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	customers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Customer, error) {
		return scanCustomer(row)
	})
	return customers, total, err
}

func (r *repository) Get(ctx context.Context, id string) (Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, selectCustomer+" WHERE c.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Customer) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO customers (id, full_name, phone_number, email, branch_id, created_by, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)`,
		c.ID, c.FullName, c.PhoneNumber, c.Email, c.BranchID, c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt)
	return mapWriteError(err)
}

func (r *repository) Update(ctx context.Context, c Customer) error {
	tag, err := r.db.Exec(ctx, `
UPDATE customers
SET full_name = $2, phone_number = $3, email = NULLIF($4, ''), branch_id = $5, updated_by = $6, updated_at = $7
WHERE id = $1`,
		c.ID, c.FullName, c.PhoneNumber, c.Email, c.BranchID, c.UpdatedBy, c.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the customer. Orders and their payments go with it through
// ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrDuplicatePhone
	case db.HasCode(err, db.CodeForeignKeyViolation):
		return ErrUnknownBranch
	default:
		return err
	}
}
