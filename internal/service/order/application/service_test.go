package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderdesk/internal/service/order/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc       *OrderApplicationService
	repo      *memRepo
	publisher *recordingPublisher
	sink      *recordingSink
	view      *LiveSyncReconciler
}

func newServiceFixture(t *testing.T, orders ...domain.Order) serviceFixture {
	t.Helper()
	f := serviceFixture{
		repo:      newMemRepo(orders...),
		publisher: &recordingPublisher{},
		sink:      &recordingSink{},
		view:      NewLiveSyncReconciler(testDay, time.UTC),
	}
	configs := loadedProvider(t)
	f.svc = NewOrderApplicationService(Dependencies{
		BranchID:   "b1",
		Repo:       f.repo,
		Publisher:  f.publisher,
		Configs:    configs,
		Reconciler: f.view,
		Receipts:   NewReceiptTrigger(configs, f.sink, testTracer, time.Second),
		Locker:     NewKeyedLocker(),
		Tracer:     testTracer,
		Timeout:    time.Second,
	})
	f.svc.now = func() time.Time { return testDay.Add(12 * time.Hour) }
	n := 0
	f.svc.newID = func() string { n++; return "ord-" + string(rune('0'+n)) }
	return f
}

func scenarioACart() CartRequest {
	pct := d("10")
	return CartRequest{
		Type: domain.OrderTypeInHouse,
		Lines: []domain.LineItem{
			{ProductID: "a", UnitBasePrice: d("12.50"), Quantity: 2, DiscountPercentage: pct, DiscountActive: true},
			{ProductID: "b", UnitBasePrice: d("3.00"), Quantity: 1},
		},
	}
}

func TestService_Preview(t *testing.T) {
	f := newServiceFixture(t)
	totals, err := f.svc.Preview(context.Background(), scenarioACart())
	require.NoError(t, err)
	assert.Equal(t, "28.05", totals.GrandTotal.StringFixed(2))
	assert.Zero(t, f.repo.submitted)
}

func TestService_PreviewKeepsDifferentlyNotedLines(t *testing.T) {
	f := newServiceFixture(t)
	req := CartRequest{
		Type: domain.OrderTypeTakeaway,
		Lines: []domain.LineItem{
			{ProductID: "p1", UnitBasePrice: d("10.00"), Quantity: 1, Remark: "no onion"},
			{ProductID: "p1", UnitBasePrice: d("12.00"), Quantity: 1, DiscountPercentage: d("50"), DiscountActive: true, Remark: "extra spicy"},
		},
	}

	cart, err := req.ToCart("b1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, "no onion", cart.Lines[0].Remark)
	assert.Equal(t, "extra spicy", cart.Lines[1].Remark)

	totals, err := f.svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "22.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "6.00", totals.ItemDiscountTotal.StringFixed(2))
}

func TestService_SubmitOrderRejectsConflictingDuplicateLines(t *testing.T) {
	f := newServiceFixture(t)
	req := CartRequest{
		Type: domain.OrderTypeTakeaway,
		Lines: []domain.LineItem{
			{ProductID: "p1", UnitBasePrice: d("10.00"), Quantity: 1},
			{ProductID: "p1", UnitBasePrice: d("12.00"), Quantity: 1},
		},
	}

	_, err := f.svc.SubmitOrder(context.Background(), req)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "lines[1].unitBasePrice", ve.Field)
	assert.Zero(t, f.repo.submitted)
}

func TestService_SubmitOrder(t *testing.T) {
	f := newServiceFixture(t)
	o, err := f.svc.SubmitOrder(context.Background(), scenarioACart())
	require.NoError(t, err)

	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, "28.05", o.Totals.GrandTotal.StringFixed(2))
	assert.Equal(t, []string{"ord-1"}, ids(f.view.Snapshot()))

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCreated, events[0].Type)
}

func TestService_SubmitOrderValidation(t *testing.T) {
	f := newServiceFixture(t)
	req := scenarioACart()
	req.Lines[1].UnitBasePrice = d("-1")

	_, err := f.svc.SubmitOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.repo.submitted)
	assert.Empty(t, f.publisher.Events())
}

func TestService_SubmitOrderUpstreamDown(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.failWith = errors.New("connection refused")

	_, err := f.svc.SubmitOrder(context.Background(), scenarioACart())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Empty(t, f.view.Snapshot())
}

func TestService_ChangeStatus_ScenarioE(t *testing.T) {
	o := orderAt("o1", domain.StatusInService, testDay.Add(time.Hour))
	f := newServiceFixture(t, o)
	f.view.OnCreated(o)

	res, err := f.svc.ChangeStatus(context.Background(), ChangeStatusCommand{OrderID: "o1", Target: domain.StatusPaid, Actor: "cashier"})
	require.NoError(t, err)
	assert.True(t, res.ReceiptFired)
	assert.Empty(t, res.ReceiptError)
	assert.Equal(t, domain.StatusInService, res.From)

	payloads := f.sink.Payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, domain.StatusPaid, payloads[0].Order.Status)
	require.Len(t, payloads[0].Order.History, 1)

	got, _ := f.view.Get("o1")
	assert.Equal(t, domain.StatusPaid, got.Status)
	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderUpdated, events[0].Type)
}

func TestService_ChangeStatus_ScenarioD(t *testing.T) {
	o := orderAt("o1", domain.StatusPending, testDay.Add(time.Hour))
	f := newServiceFixture(t, o)
	f.view.OnCreated(o)

	_, err := f.svc.ChangeStatus(context.Background(), ChangeStatusCommand{OrderID: "o1", Target: domain.StatusCancelled})
	assert.ErrorIs(t, err, domain.ErrNoteRequired)
	assert.Zero(t, f.repo.updates)

	res, err := f.svc.ChangeStatus(context.Background(), ChangeStatusCommand{OrderID: "o1", Target: domain.StatusCancelled, Note: "customer left"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
	assert.Len(t, res.Order.History, 1)
	assert.False(t, res.ReceiptFired)
	assert.Empty(t, f.sink.Payloads())
}

func TestService_ChangeStatus_UpstreamFailureLeavesStateUnchanged(t *testing.T) {
	o := orderAt("o1", domain.StatusConfirmed, testDay.Add(time.Hour))
	f := newServiceFixture(t, o)
	f.view.OnCreated(o)
	f.repo.failWith = errors.New("timeout")

	_, err := f.svc.ChangeStatus(context.Background(), ChangeStatusCommand{OrderID: "o1", Target: domain.StatusCooking})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	got, _ := f.view.Get("o1")
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Empty(t, got.History)
	assert.Empty(t, f.publisher.Events())
}

func TestService_ChangeStatus_OrderOutsideView(t *testing.T) {
	o := orderAt("old", domain.StatusReady, testDay.AddDate(0, 0, -1))
	f := newServiceFixture(t, o)

	res, err := f.svc.ChangeStatus(context.Background(), ChangeStatusCommand{OrderID: "old", Target: domain.StatusInService})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInService, res.Order.Status)
	_, inView := f.view.Get("old")
	assert.False(t, inView)
}

func TestService_ChangeStatus_InvalidAndMissing(t *testing.T) {
	o := orderAt("o1", domain.StatusPaid, testDay.Add(time.Hour))
	f := newServiceFixture(t, o)

	_, err := f.svc.ChangeStatus(context.Background(), ChangeStatusCommand{OrderID: "o1", Target: domain.StatusCancelled, Note: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.ChangeStatus(context.Background(), ChangeStatusCommand{OrderID: "nope", Target: domain.StatusConfirmed})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestService_SelectDay(t *testing.T) {
	yesterday := testDay.AddDate(0, 0, -1)
	f := newServiceFixture(t,
		orderAt("y1", domain.StatusPaid, yesterday.Add(9*time.Hour)),
		orderAt("y2", domain.StatusPaid, yesterday.Add(11*time.Hour)),
		orderAt("t1", domain.StatusPending, testDay.Add(9*time.Hour)),
	)

	orders, err := f.svc.SelectDay(context.Background(), yesterday)
	require.NoError(t, err)
	assert.Equal(t, []string{"y2", "y1"}, ids(orders))

	// 所选日期之外的新订单不会进入视图
	assert.Equal(t, OutcomeOtherDay, f.view.OnCreated(orderAt("t2", domain.StatusPending, testDay.Add(10*time.Hour))))
}
