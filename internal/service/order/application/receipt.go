// internal/service/order/application/receipt.go
package application

import (
	"context"
	"fmt"
	"time"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReceiptTrigger 决定一次流转是否需要打印小票，并组装打印内容
type ReceiptTrigger struct {
	configs *BranchConfigProvider
	sink    port.ReceiptSink
	tracer  trace.Tracer
	timeout time.Duration
}

func NewReceiptTrigger(configs *BranchConfigProvider, sink port.ReceiptSink, tracer trace.Tracer, timeout time.Duration) *ReceiptTrigger {
	return &ReceiptTrigger{configs: configs, sink: sink, tracer: tracer, timeout: timeout}
}

// BuildPayload 组装小票内容；门店配置没有加载时返回 ErrConfigUnavailable，不使用默认值
func (t *ReceiptTrigger) BuildPayload(order domain.Order, now time.Time) (domain.ReceiptPayload, error) {
	cfg, ok := t.configs.Current(order.BranchID)
	if !ok {
		return domain.ReceiptPayload{}, fmt.Errorf("%w: branch %s", domain.ErrConfigUnavailable, order.BranchID)
	}
	return domain.ReceiptPayload{
		BranchID:    cfg.BranchID,
		BranchName:  cfg.Name,
		Order:       order.Clone(),
		Tax:         cfg.Tax,
		Receipt:     cfg.Receipt,
		RequestedAt: now,
	}, nil
}

// Trigger 只在流转进入 paid 时发出一次打印请求。
// result.Order 必须是已提交的、流转后的订单。
func (t *ReceiptTrigger) Trigger(ctx context.Context, result domain.TransitionResult) (bool, error) {
	if !result.ReceiptNeeded {
		return false, nil
	}
	ctx, span := t.tracer.Start(ctx, "receipt.Trigger", trace.WithAttributes(
		attribute.String("order.id", result.Order.ID),
		attribute.String("order.status", string(result.Order.Status)),
	))
	defer span.End()

	payload, err := t.BuildPayload(result.Order, time.Now())
	if err != nil {
		metrics.ReceiptsTotal.WithLabelValues("config_unavailable").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "receipt config unavailable")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", result.Order.ID).Msg("Receipt not printed")
		return false, err
	}

	printCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.sink.Print(printCtx, payload); err != nil {
		metrics.ReceiptsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "receipt sink failed")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", result.Order.ID).Msg("Receipt sink failed")
		return false, fmt.Errorf("%w: receipt sink: %v", domain.ErrUpstreamUnavailable, err)
	}

	metrics.ReceiptsTotal.WithLabelValues("fired").Inc()
	logger.Ctx(ctx).Info().Str("order_id", result.Order.ID).Msg("Receipt requested")
	return true, nil
}
