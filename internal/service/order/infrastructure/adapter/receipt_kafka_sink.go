// internal/service/order/infrastructure/adapter/receipt_kafka_sink.go
package adapter

import (
	"context"
	"encoding/json"

	"orderdesk/internal/pkg/mq"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// ReceiptKafkaSink 实现了 port.ReceiptSink，把打印请求交给门店的打印服务消费。
// 排版和实际打印不在这里处理。
type ReceiptKafkaSink struct {
	writer *kafka.Writer
}

var _ port.ReceiptSink = (*ReceiptKafkaSink)(nil)

func NewReceiptKafkaSink(writer *kafka.Writer) *ReceiptKafkaSink {
	return &ReceiptKafkaSink{writer: writer}
}

// Print 投递一条打印请求
func (s *ReceiptKafkaSink) Print(ctx context.Context, payload domain.ReceiptPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encode receipt for order %s", payload.Order.ID)
	}
	if err := mq.ProduceMessage(ctx, s.writer, []byte(payload.BranchID), body); err != nil {
		return errors.Wrapf(err, "send receipt for order %s", payload.Order.ID)
	}
	return nil
}

// Close 关闭底层的 Kafka writer
func (s *ReceiptKafkaSink) Close() error {
	return s.writer.Close()
}
