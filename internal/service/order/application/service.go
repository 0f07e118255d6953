// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies 是应用服务的协作者
type Dependencies struct {
	BranchID   string
	Repo       domain.OrderRepository
	Publisher  port.OrderEventPublisher
	Configs    *BranchConfigProvider
	Reconciler *LiveSyncReconciler
	Receipts   *ReceiptTrigger
	Locker     port.OrderLocker
	Tracer     trace.Tracer
	// Timeout 是每次上游调用的超时
	Timeout time.Duration
}

// OrderApplicationService 编排收银台的用例：定价、提交、状态流转和按日查看
type OrderApplicationService struct {
	branchID   string
	repo       domain.OrderRepository
	publisher  port.OrderEventPublisher
	configs    *BranchConfigProvider
	reconciler *LiveSyncReconciler
	receipts   *ReceiptTrigger
	locker     port.OrderLocker
	tracer     trace.Tracer
	timeout    time.Duration

	now   func() time.Time
	newID func() string
}

func NewOrderApplicationService(d Dependencies) *OrderApplicationService {
	return &OrderApplicationService{
		branchID:   d.BranchID,
		repo:       d.Repo,
		publisher:  d.Publisher,
		configs:    d.Configs,
		reconciler: d.Reconciler,
		receipts:   d.Receipts,
		locker:     d.Locker,
		tracer:     d.Tracer,
		timeout:    d.Timeout,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Preview 对购物车定价但不提交
func (s *OrderApplicationService) Preview(ctx context.Context, req CartRequest) (domain.Breakdown, error) {
	cfg, err := s.configs.Ensure(ctx, s.branchID)
	if err != nil {
		return domain.Breakdown{}, err
	}
	cart, err := req.ToCart(s.branchID)
	if err != nil {
		recordRejected(err)
		return domain.Breakdown{}, err
	}
	totals, err := domain.Price(cart.PricingInput(cfg.Tax))
	if err != nil {
		recordRejected(err)
		return domain.Breakdown{}, err
	}
	return totals, nil
}

// SubmitOrder 定价并提交购物车，成功后并入当天视图并发布 order.created
func (s *OrderApplicationService) SubmitOrder(ctx context.Context, req CartRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.SubmitOrder")
	defer span.End()

	cfg, err := s.configs.Ensure(ctx, s.branchID)
	if err != nil {
		failSpan(span, err, "branch config unavailable")
		return domain.Order{}, err
	}
	cart, err := req.ToCart(s.branchID)
	if err != nil {
		recordRejected(err)
		failSpan(span, err, "invalid cart")
		return domain.Order{}, err
	}
	order, err := cart.Submit(s.newID(), cfg.Tax, s.now())
	if err != nil {
		recordRejected(err)
		failSpan(span, err, "pricing rejected")
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.grand_total", order.Totals.GrandTotal.StringFixed(2)))

	repoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	committed, err := s.repo.Submit(repoCtx, order)
	cancel()
	if err != nil {
		err = upstream(err)
		failSpan(span, err, "submit failed")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("Order submission failed")
		return domain.Order{}, err
	}

	s.reconciler.OnCreated(committed)
	s.publish(ctx, domain.NewOrderCreated(committed))
	logger.Ctx(ctx).Info().Str("order_id", committed.ID).Str("grand_total", committed.Totals.GrandTotal.StringFixed(2)).Msg("Order submitted")
	return committed, nil
}

// ChangeStatus 本地校验流转，写入上游，成功后合并到视图、发布 order.updated 并触发小票。
// 上游失败时返回 ErrUpstreamUnavailable，本地状态不变，也不会自动重试。
func (s *OrderApplicationService) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (ChangeStatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.ChangeStatus", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.target", string(cmd.Target)),
	))
	defer span.End()

	unlock, err := s.locker.Lock(ctx, cmd.OrderID)
	if err != nil {
		err = upstream(err)
		failSpan(span, err, "lock failed")
		return ChangeStatusResult{}, err
	}
	defer unlock()

	current, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		failSpan(span, err, "load failed")
		return ChangeStatusResult{}, err
	}
	policy, err := s.configs.Policy(ctx, current.BranchID)
	if err != nil {
		failSpan(span, err, "branch config unavailable")
		return ChangeStatusResult{}, err
	}

	result, err := domain.RequestTransition(current, domain.TransitionRequest{
		Target: cmd.Target,
		Note:   cmd.Note,
		Actor:  cmd.Actor,
		At:     s.now(),
	}, policy)
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(string(cmd.Target), metrics.ResultRejected).Inc()
		failSpan(span, err, "transition rejected")
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", cmd.OrderID).Msg("Transition rejected")
		return ChangeStatusResult{}, err
	}

	repoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	committed, err := s.repo.UpdateStatus(repoCtx, cmd.OrderID, result.Entry)
	cancel()
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues(string(cmd.Target), metrics.ResultFailed).Inc()
		err = upstream(err)
		failSpan(span, err, "status update failed")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", cmd.OrderID).Msg("Status update failed")
		return ChangeStatusResult{}, err
	}
	metrics.TransitionsTotal.WithLabelValues(string(cmd.Target), metrics.ResultOK).Inc()

	// 后续副作用一律基于上游确认后的订单
	result.Order = committed
	s.reconciler.OnUpdated(committed)
	s.publish(ctx, domain.NewOrderUpdated(committed))

	out := ChangeStatusResult{Order: committed, From: result.From}
	fired, err := s.receipts.Trigger(ctx, result)
	out.ReceiptFired = fired
	if err != nil {
		out.ReceiptError = err.Error()
	}
	logger.Ctx(ctx).Info().
		Str("order_id", committed.ID).
		Str("from", string(result.From)).
		Str("to", string(committed.Status)).
		Bool("receipt", fired).
		Msg("Order status changed")
	return out, nil
}

// SelectDay 拉取门店某天的订单并替换当前视图。
// day 只取年月日，按门店时区解释。
func (s *OrderApplicationService) SelectDay(ctx context.Context, day time.Time) ([]domain.Order, error) {
	cfg, err := s.configs.Ensure(ctx, s.branchID)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()
	y, m, dd := day.Date()
	day = time.Date(y, m, dd, 0, 0, 0, 0, loc)

	repoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	orders, err := s.repo.FetchForDate(repoCtx, s.branchID, day, loc)
	cancel()
	if err != nil {
		return nil, upstream(err)
	}
	s.reconciler.Reset(day, loc, orders)
	return s.reconciler.Snapshot(), nil
}

// Orders 返回当前视图
func (s *OrderApplicationService) Orders() []domain.Order {
	return s.reconciler.Snapshot()
}

// load 优先从视图取订单，不在视图中时读上游
func (s *OrderApplicationService) load(ctx context.Context, orderID string) (domain.Order, error) {
	if o, ok := s.reconciler.Get(orderID); ok {
		return o, nil
	}
	repoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	o, err := s.repo.FindByID(repoCtx, orderID)
	if err != nil {
		return domain.Order{}, upstream(err)
	}
	return o, nil
}

func (s *OrderApplicationService) publish(ctx context.Context, ev domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	// 订单已提交，推送失败只影响其他终端的实时性
	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", ev.Order.ID).Str("type", string(ev.Type)).Msg("Publish order event failed")
	}
}

// upstream 把未分类的上游错误归为 ErrUpstreamUnavailable
func upstream(err error) error {
	for _, known := range []error{
		domain.ErrUpstreamUnavailable, domain.ErrOrderNotFound, domain.ErrInvalidTransition,
		domain.ErrNoteRequired, domain.ErrValidation, domain.ErrConfigUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &upstreamError{cause: err}
}

type upstreamError struct{ cause error }

func (e *upstreamError) Error() string {
	return domain.ErrUpstreamUnavailable.Error() + ": " + e.cause.Error()
}

func (e *upstreamError) Is(target error) bool { return target == domain.ErrUpstreamUnavailable }

func (e *upstreamError) Unwrap() error { return e.cause }

func recordRejected(err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		// 只取顶层字段名，避免行号进入标签
		field := ve.Field
		if i := strings.IndexAny(field, "[."); i > 0 {
			field = field[:i]
		}
		metrics.PricingRejectedTotal.WithLabelValues(field).Inc()
	}
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
