package orders

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/ordernum"
	"github.com/tailorhub/tailorhub/internal/payments"
)

// memoryRepo holds one lock for the whole transaction, standing in for the
// numbering advisory lock.
type memoryRepo struct {
	mu        sync.Mutex
	orders    map[string]Order
	customers map[string]CustomerRef
}

func newMemoryRepo(customers ...CustomerRef) *memoryRepo {
	m := &memoryRepo{orders: map[string]Order{}, customers: map[string]CustomerRef{}}
	for _, c := range customers {
		m.customers[c.ID] = c
	}
	return m
}

type memoryTx struct{ *memoryRepo }

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, memoryTx{m})
}

func (t memoryTx) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, t)
}

func (t memoryTx) Get(_ context.Context, id string) (Order, error) { return t.get(id) }

func (m *memoryRepo) get(id string) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memoryRepo) LockNumbering(context.Context, int) error { return nil }

func (m *memoryRepo) LastNumber(_ context.Context, year int) (string, error) {
	best, bestSeq := "", 0
	for _, o := range m.orders {
		y, seq, err := ordernum.Parse(o.OrderNumber)
		if err != nil || y != year {
			continue
		}
		if seq > bestSeq {
			best, bestSeq = o.OrderNumber, seq
		}
	}
	return best, nil
}

func (m *memoryRepo) Customer(_ context.Context, id string) (CustomerRef, error) {
	c, ok := m.customers[id]
	if !ok {
		return CustomerRef{}, ErrCustomerNotFound
	}
	return c, nil
}

func (m *memoryRepo) Create(_ context.Context, o Order) error {
	for _, existing := range m.orders {
		if existing.OrderNumber == o.OrderNumber {
			return ErrNumberTaken
		}
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memoryRepo) List(_ context.Context, filter access.Filter, c Criteria) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if !filter.Allows(o.BranchID) {
			continue
		}
		if c.Status != "" && o.Status != c.Status {
			continue
		}
		if c.OpenOnly && o.Status.Terminal() {
			continue
		}
		if c.CustomerID != "" && o.CustomerID != c.CustomerID {
			continue
		}
		if c.DueFrom != nil && o.DueDate.Before(*c.DueFrom) {
			continue
		}
		if c.DueTo != nil && o.DueDate.After(*c.DueTo) {
			continue
		}
		if c.Search != "" && !strings.Contains(strings.ToLower(o.Description+" "+o.OrderNumber), strings.ToLower(c.Search)) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, len(out), nil
}

func (m *memoryRepo) Update(_ context.Context, o Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *memoryRepo) OpenDueCounts(_ context.Context, filter access.Filter) ([]DueCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate := map[time.Time]int{}
	for _, o := range m.orders {
		if o.Status.Terminal() || !filter.Allows(o.BranchID) {
			continue
		}
		byDate[o.DueDate]++
	}
	var out []DueCount
	for d, n := range byDate {
		out = append(out, DueCount{Date: d, Count: n})
	}
	return out, nil
}

func (m *memoryRepo) OpenDueBy(_ context.Context, due time.Time) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if !o.Status.Terminal() && !o.DueDate.After(due) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

type memoryPayments struct {
	mu   sync.Mutex
	byID map[string][]payments.Payment
}

func (p *memoryPayments) add(orderID string, amount string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.byID == nil {
		p.byID = map[string][]payments.Payment{}
	}
	p.byID[orderID] = append(p.byID[orderID], payments.Payment{OrderID: orderID, Amount: d(amount)})
}

func (p *memoryPayments) ListByOrders(_ context.Context, ids []string) (map[string][]payments.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string][]payments.Payment{}
	for _, id := range ids {
		out[id] = p.byID[id]
	}
	return out, nil
}
