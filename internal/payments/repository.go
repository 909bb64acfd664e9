package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/db"
)

// Repository persists payments. LockOrder, Amounts, Insert and TouchOrder are
// meant to run inside WithTx.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LockOrder(ctx context.Context, orderID string) (OrderSnapshot, error)
	Amounts(ctx context.Context, orderID string) ([]decimal.Decimal, error)
	Insert(ctx context.Context, p Payment) error
	TouchOrder(ctx context.Context, orderID string, at time.Time) error
	OrderBranch(ctx context.Context, orderID string) (string, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	ListByOrders(ctx context.Context, orderIDs []string) (map[string][]Payment, error)
	ListRange(ctx context.Context, filter access.Filter, from, to time.Time) ([]Payment, error)
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

// LockOrder takes a row lock on the order so concurrent payments serialise.
func (r *repository) LockOrder(ctx context.Context, orderID string) (OrderSnapshot, error) {
	var (
		s     OrderSnapshot
		email *string
	)
	err := r.db.QueryRow(ctx, `
SELECT o.id, o.order_number, o.branch_id, o.description, o.total_amount, o.due_date,
       o.status = 'CANCELLED', c.full_name, c.phone_number, c.email
FROM orders o
JOIN customers c ON c.id = o.customer_id
WHERE o.id = $1
FOR UPDATE OF o`, orderID).Scan(
		&s.ID, &s.OrderNumber, &s.BranchID, &s.Description, &s.Total, &s.DueDate,
		&s.Cancelled, &s.CustomerName, &s.CustomerPhone, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderSnapshot{}, ErrOrderNotFound
	}
	if err != nil {
		return OrderSnapshot{}, err
	}
	if email != nil {
		s.CustomerEmail = *email
	}
	return s, nil
}

func (r *repository) Amounts(ctx context.Context, orderID string) ([]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `SELECT amount FROM payments WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[decimal.Decimal])
}

func (r *repository) Insert(ctx context.Context, p Payment) error {
	var note *string
	if p.Note != "" {
		note = &p.Note
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO payments (id, order_id, amount, payment_date, payment_method, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OrderID, p.Amount, p.PaidAt, string(p.Method), note, p.CreatedBy, p.CreatedAt)
	return err
}

// TouchOrder bumps the order's updated_at. A concurrent payer still waiting on
// the row lock then fails with a serialization error instead of reading a
// stale balance.
func (r *repository) TouchOrder(ctx context.Context, orderID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE orders SET updated_at = $2 WHERE id = $1`, orderID, at)
	return err
}

func (r *repository) OrderBranch(ctx context.Context, orderID string) (string, error) {
	var branchID string
	err := r.db.QueryRow(ctx, `SELECT branch_id FROM orders WHERE id = $1`, orderID).Scan(&branchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	return branchID, err
}

const selectPayment = `
SELECT p.id, p.order_id, p.amount, p.payment_date, p.payment_method, COALESCE(p.note, ''),
       p.created_by, p.created_at, o.order_number, o.branch_id, c.full_name
FROM payments p
JOIN orders o ON o.id = p.order_id
JOIN customers c ON c.id = o.customer_id
`

func (r *repository) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := r.db.Query(ctx, selectPayment+`WHERE p.order_id = $1 ORDER BY p.payment_date, p.created_at`, orderID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *repository) ListByOrders(ctx context.Context, orderIDs []string) (map[string][]Payment, error) {
	out := make(map[string][]Payment, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, selectPayment+`WHERE p.order_id = ANY($1) ORDER BY p.payment_date, p.created_at`, orderIDs)
	if err != nil {
		return nil, err
	}
	payments, err := collectPayments(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		out[p.OrderID] = append(out[p.OrderID], p)
	}
	return out, nil
}

func (r *repository) ListRange(ctx context.Context, filter access.Filter, from, to time.Time) ([]Payment, error) {
	where, args := filter.Where("o.branch_id", 3)
	rows, err := r.db.Query(ctx, selectPayment+`
WHERE p.payment_date >= $1 AND p.payment_date <= $2 AND `+where+`
ORDER BY p.payment_date, p.created_at`, append([]any{from, to}, args...)...)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		var (
			p      Payment
			method string
		)
		err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.PaidAt, &method, &p.Note,
			&p.CreatedBy, &p.CreatedAt, &p.OrderNumber, &p.BranchID, &p.CustomerName)
		p.Method = Method(method)
		return p, err
	})
}
