package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"orderdesk/internal/pkg/money"
	"orderdesk/internal/service/order/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	testTracer = noop.NewTracerProvider().Tracer("test")
	testDay    = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return money.MustFromString(s) }

func orderAt(id string, status domain.Status, created time.Time) domain.Order {
	return domain.Order{ID: id, BranchID: "b1", Type: domain.OrderTypeInHouse, Status: status, CreatedAt: created}
}

type memRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	failWith  error
	updates   int
	submitted int
}

func newMemRepo(orders ...domain.Order) *memRepo {
	r := &memRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memRepo) Submit(_ context.Context, o domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return domain.Order{}, r.failWith
	}
	r.submitted++
	r.orders[o.ID] = o.Clone()
	return o.Clone(), nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, entry domain.StatusHistoryEntry) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return domain.Order{}, r.failWith
	}
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	r.updates++
	o = o.Clone()
	o.Status = entry.To
	o.History = append(o.History, entry)
	r.orders[id] = o
	return o.Clone(), nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return domain.Order{}, r.failWith
	}
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *memRepo) FetchForDate(_ context.Context, branchID string, day time.Time, loc *time.Location) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []domain.Order
	for _, o := range r.orders {
		if o.BranchID == branchID && o.CreatedOn(day, loc) {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderEvent(nil), p.events...)
}

type recordingSink struct {
	mu       sync.Mutex
	payloads []domain.ReceiptPayload
	err      error
}

func (s *recordingSink) Print(_ context.Context, p domain.ReceiptPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, p)
	return nil
}

func (s *recordingSink) Payloads() []domain.ReceiptPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ReceiptPayload(nil), s.payloads...)
}

type staticSource struct {
	mu    sync.Mutex
	cfg   domain.BranchConfig
	err   error
	calls int
	gate  chan struct{}
}

func (s *staticSource) Load(ctx context.Context, branchID string) (domain.BranchConfig, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return domain.BranchConfig{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.BranchConfig{}, s.err
	}
	if s.cfg.BranchID != branchID {
		return domain.BranchConfig{}, errors.New("unknown branch")
	}
	return s.cfg, nil
}

func (s *staticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func branchConfig() domain.BranchConfig {
	return domain.BranchConfig{
		BranchID:           "b1",
		Name:               "Downtown",
		TimeZone:           "UTC",
		RequiresCancelNote: true,
		Tax:                domain.TaxConfig{Name: "VAT", Rate: d("10"), Active: true},
		Receipt:            domain.ReceiptSettings{Header: "Downtown", Copies: 1},
	}
}
