// internal/service/order/infrastructure/adapter/order_event_kafka_publisher.go
package adapter

import (
	"context"

	"orderdesk/internal/pkg/mq"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// HeaderEventType 让消费方不用反序列化就能过滤事件
const HeaderEventType = "x-event-type"

// OrderEventKafkaPublisher 实现了 port.OrderEventPublisher，按订单 id 分区保证同一订单的事件有序
type OrderEventKafkaPublisher struct {
	writer *kafka.Writer
}

var _ port.OrderEventPublisher = (*OrderEventKafkaPublisher)(nil)

func NewOrderEventKafkaPublisher(writer *kafka.Writer) *OrderEventKafkaPublisher {
	return &OrderEventKafkaPublisher{writer: writer}
}

// Publish 发布一条 order.created / order.updated 事件
func (p *OrderEventKafkaPublisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	body, err := ev.Encode()
	if err != nil {
		return errors.Wrapf(err, "encode %s for order %s", ev.Type, ev.Order.ID)
	}
	msg := kafka.Message{
		Key:     []byte(ev.Order.ID),
		Value:   body,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(ev.Type)}},
	}
	mq.InjectTraceContext(ctx, &msg.Headers)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", ev.Type, ev.Order.ID)
	}
	return nil
}

// Close 关闭底层的 Kafka writer
func (p *OrderEventKafkaPublisher) Close() error {
	return p.writer.Close()
}
