package payments

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/notify"
)

// memoryRepo serialises transactions with a mutex, mirroring the row lock.
type memoryRepo struct {
	mu       sync.Mutex
	orders   map[string]OrderSnapshot
	payments []Payment
	txErr    error
	touched  int
}

func newMemoryRepo(orders ...OrderSnapshot) *memoryRepo {
	m := &memoryRepo{orders: map[string]OrderSnapshot{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

type memoryTx struct {
	*memoryRepo
	pending []Payment
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txErr != nil {
		return m.txErr
	}
	tx := &memoryTx{memoryRepo: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.payments = append(m.payments, tx.pending...)
	return nil
}

func (t *memoryTx) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, t)
}

func (t *memoryTx) Insert(_ context.Context, p Payment) error {
	t.pending = append(t.pending, p)
	return nil
}

func (t *memoryTx) TouchOrder(context.Context, string, time.Time) error {
	t.touched++
	return nil
}

func (m *memoryRepo) LockOrder(_ context.Context, orderID string) (OrderSnapshot, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return OrderSnapshot{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryRepo) Amounts(_ context.Context, orderID string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p.Amount)
		}
	}
	return out, nil
}

func (m *memoryRepo) Insert(_ context.Context, p Payment) error {
	m.payments = append(m.payments, p)
	return nil
}

func (m *memoryRepo) TouchOrder(context.Context, string, time.Time) error { return nil }

func (m *memoryRepo) OrderBranch(_ context.Context, orderID string) (string, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return "", ErrOrderNotFound
	}
	return o.BranchID, nil
}

func (m *memoryRepo) ListByOrder(_ context.Context, orderID string) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByOrders(_ context.Context, orderIDs []string) (map[string][]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]Payment{}
	for _, id := range orderIDs {
		for _, p := range m.payments {
			if p.OrderID == id {
				out[id] = append(out[id], p)
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) ListRange(_ context.Context, filter access.Filter, from, to time.Time) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		if p.PaidAt.Before(from) || p.PaidAt.After(to) {
			continue
		}
		if !filter.Allows(m.orders[p.OrderID].BranchID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []string
}

func (n *recordingNotifier) PaymentReceived(_ context.Context, p notify.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p.OrderNumber+":"+p.Balance.StringFixed(2))
}

type countingCache struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

type countingMetrics struct {
	mu       sync.Mutex
	recorded int
	rejected map[string]int
}

func (c *countingMetrics) PaymentRecorded(string, decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorded++
}

func (c *countingMetrics) PaymentRejected(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejected == nil {
		c.rejected = map[string]int{}
	}
	c.rejected[reason]++
}
