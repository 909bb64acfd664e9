package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/ordernum"
	"github.com/tailorhub/tailorhub/internal/platform/db"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// numberingLockKey namespaces the advisory lock guarding order numbering.
const numberingLockKey = 0x7A11_0000

// Repository persists orders.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LockNumbering(ctx context.Context, year int) error
	LastNumber(ctx context.Context, year int) (string, error)
	Customer(ctx context.Context, customerID string) (CustomerRef, error)
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, filter access.Filter, c Criteria) ([]Order, int, error)
	Update(ctx context.Context, o Order) error
	Delete(ctx context.Context, id string) error
	OpenDueCounts(ctx context.Context, filter access.Filter) ([]DueCount, error)
	OpenDueBy(ctx context.Context, due time.Time) ([]Order, error)
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

// LockNumbering serialises number generation for year until the transaction ends.
func (r *repository) LockNumbering(ctx context.Context, year int) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(numberingLockKey+year))
	return err
}

// LastNumber returns the highest issued number for year by numeric sequence,
// or "" when none exist.
func (r *repository) LastNumber(ctx context.Context, year int) (string, error) {
	var number string
	err := r.db.QueryRow(ctx, `
SELECT order_number
FROM orders
WHERE order_number LIKE $1
ORDER BY split_part(order_number, '-', 3)::int DESC
LIMIT 1`, ordernum.Prefix(year)+"%").Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *repository) Customer(ctx context.Context, customerID string) (CustomerRef, error) {
	var c CustomerRef
	err := r.db.QueryRow(ctx, `
SELECT id, full_name, phone_number, COALESCE(email, ''), branch_id
FROM customers WHERE id = $1
FOR SHARE`, customerID).Scan(&c.ID, &c.FullName, &c.PhoneNumber, &c.Email, &c.BranchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerRef{}, ErrCustomerNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, o Order) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO orders (id, order_number, customer_id, branch_id, description, images, total_amount, status,
                    order_date, due_date, created_by, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.OrderNumber, o.CustomerID, o.BranchID, o.Description, images(o.Images), o.Total, string(o.Status),
		dateString(o.OrderDate), dateString(o.DueDate), o.CreatedBy, o.UpdatedBy, o.CreatedAt, o.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrNumberTaken, err)
	}
	return err
}

const selectOrder = `
SELECT o.id, o.order_number, o.customer_id, c.full_name, c.phone_number, COALESCE(c.email, ''),
       o.branch_id, b.name, o.description, o.images, o.total_amount, o.status,
       o.order_date, o.due_date, o.created_by, o.updated_by, o.created_at, o.updated_at
FROM orders o
JOIN customers c ON c.id = o.customer_id
JOIN branches b ON b.id = o.branch_id
`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.Customer.FullName, &o.Customer.PhoneNumber, &o.Customer.Email,
		&o.BranchID, &o.BranchName, &o.Description, &o.Images, &o.Total, &status,
		&o.OrderDate, &o.DueDate, &o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	o.Customer.ID = o.CustomerID
	o.Customer.BranchID = o.BranchID
	if o.Images == nil {
		o.Images = []string{}
	}
	return o, err
}

func (r *repository) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, selectOrder+`WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *repository) List(ctx context.Context, filter access.Filter, c Criteria) ([]Order, int, error) {
	where, args := filter.Where("o.branch_id", 1)
	conditions := []string{where}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if c.Status != "" {
		conditions = append(conditions, "o.status = "+next(string(c.Status)))
	}
	if c.OpenOnly {
		conditions = append(conditions, "o.status NOT IN ('COLLECTED', 'CANCELLED')")
	}
	if c.CustomerID != "" {
		conditions = append(conditions, "o.customer_id = "+next(c.CustomerID))
	}
	if c.DueFrom != nil {
		conditions = append(conditions, "o.due_date >= "+next(dateString(*c.DueFrom))+"::date")
	}
	if c.DueTo != nil {
		conditions = append(conditions, "o.due_date <= "+next(dateString(*c.DueTo))+"::date")
	}
	if c.Search != "" {
		p := next("%" + strings.ToLower(c.Search) + "%")
		conditions = append(conditions, "(LOWER(o.order_number) LIKE "+p+" OR LOWER(o.description) LIKE "+p+" OR LOWER(c.full_name) LIKE "+p+" OR c.phone_number LIKE "+p+")")
	}
	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders o JOIN customers c ON c.id = o.customer_id `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(c.Page, c.PerPage)
	limit, offset := next(perPage), next(shared.Offset(page, perPage))
	rows, err := r.db.Query(ctx, selectOrder+whereClause+` ORDER BY o.due_date, o.order_number LIMIT `+limit+` OFFSET `+offset, args...)
	if err != nil {
		return nil, 0, err
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		return scanOrder(row)
	})
	return orders, total, err
}

func (r *repository) Update(ctx context.Context, o Order) error {
	tag, err := r.db.Exec(ctx, `
UPDATE orders
SET description = $2, images = $3, total_amount = $4, status = $5, due_date = $6, updated_by = $7, updated_at = $8
WHERE id = $1`,
		o.ID, o.Description, images(o.Images), o.Total, string(o.Status), dateString(o.DueDate), o.UpdatedBy, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the order; payments follow through ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) OpenDueCounts(ctx context.Context, filter access.Filter) ([]DueCount, error) {
	where, args := filter.Where("branch_id", 1)
	rows, err := r.db.Query(ctx, `
SELECT due_date, COUNT(*)
FROM orders
WHERE status NOT IN ('COLLECTED', 'CANCELLED') AND `+where+`
GROUP BY due_date`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DueCount, error) {
		var dc DueCount
		err := row.Scan(&dc.Date, &dc.Count)
		return dc, err
	})
}

// OpenDueBy lists open orders across every branch due on or before due.
func (r *repository) OpenDueBy(ctx context.Context, due time.Time) ([]Order, error) {
	rows, err := r.db.Query(ctx, selectOrder+`
WHERE o.status NOT IN ('COLLECTED', 'CANCELLED') AND o.due_date <= $1::date
ORDER BY o.due_date, o.order_number`, dateString(due))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		return scanOrder(row)
	})
}

func dateString(t time.Time) string {
	return t.Format("2006-01-02")
}

func images(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
