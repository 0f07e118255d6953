// internal/pkg/mq/failure.go
package mq

import (
	"context"
	"fmt"

	"orderdesk/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// FailureHandler 把无法处理的消息转发到死信主题，原消息照常提交
type FailureHandler struct {
	dlt *kafka.Writer
}

// NewFailureHandler dlt 为 nil 时只记录日志
func NewFailureHandler(dlt *kafka.Writer) *FailureHandler {
	return &FailureHandler{dlt: dlt}
}

// Handle 记录失败原因并投递死信
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	log := logger.Ctx(ctx)
	log.Warn().Err(cause).
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("Message could not be processed")
	if h == nil || h.dlt == nil {
		return
	}
	dead := DeadLetter(msg, fmt.Sprintf("%T", cause), cause)
	InjectTraceContext(ctx, &dead.Headers)
	if err := h.dlt.WriteMessages(ctx, dead); err != nil {
		log.Error().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("Failed to send message to DLT")
	}
}
