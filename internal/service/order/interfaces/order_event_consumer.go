// internal/service/order/interfaces/order_event_consumer.go
package interfaces

import (
	"context"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/pkg/mq"
	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderEventConsumer 消费推送通道上的 order.created / order.updated，合并到当天视图。
// 无法安全合并的事件转入死信主题，不会影响视图。
type OrderEventConsumer struct {
	reader         *kafka.Reader
	view           *application.LiveSyncReconciler
	failureHandler *mq.FailureHandler
	tracer         trace.Tracer
}

func NewOrderEventConsumer(reader *kafka.Reader, view *application.LiveSyncReconciler, failureHandler *mq.FailureHandler) *OrderEventConsumer {
	return &OrderEventConsumer{
		reader:         reader,
		view:           view,
		failureHandler: failureHandler,
		tracer:         otel.Tracer("order-event-consumer"),
	}
}

// Run 持续消费直到 ctx 结束
func (c *OrderEventConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("Order event consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("Order event consumer shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Could not read order event, retrying")
			if !waitRetry(ctx, fetchRetryBackoff) {
				return nil
			}
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		if _, err := c.Handle(msgCtx, msg.Value); err != nil {
			c.failureHandler.Handle(msgCtx, msg, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit order event")
		}
	}
}

// Handle 解码并合并一条事件
func (c *OrderEventConsumer) Handle(ctx context.Context, value []byte) (application.Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "consumer.OrderEvent", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	ev, err := domain.DecodeOrderEvent(value)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("unknown", string(application.OutcomeConflict)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync conflict")
		return application.OutcomeConflict, err
	}
	span.SetAttributes(attribute.String("order.id", ev.Order.ID), attribute.String("event.type", string(ev.Type)))

	outcome, err := c.view.Apply(ev)
	metrics.ReconcileTotal.WithLabelValues(string(ev.Type), string(outcome)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync conflict")
		return outcome, err
	}
	logger.Ctx(ctx).Debug().Str("order_id", ev.Order.ID).Str("type", string(ev.Type)).Str("outcome", string(outcome)).Msg("Order event applied")
	return outcome, nil
}
