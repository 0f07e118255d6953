// internal/service/order/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"time"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// fetchRetryBackoff 是读取失败后的等待时间，避免 broker 不可用时空转
const fetchRetryBackoff = time.Second

// messageReader 是 kafka.Reader 中消费循环用到的部分
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DltConsumer 监听订单事件的死信主题并记录日志，供人工排查同步冲突
type DltConsumer struct {
	reader  messageReader
	topic   string
	backoff time.Duration
}

func NewDltConsumer(reader *kafka.Reader) *DltConsumer {
	return &DltConsumer{reader: reader, topic: reader.Config().Topic, backoff: fetchRetryBackoff}
}

// Run 持续消费直到 ctx 结束
func (a *DltConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("DLT consumer started")
	defer a.reader.Close()
	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Could not read dead letter, retrying")
			if !waitRetry(ctx, a.backoff) {
				return nil
			}
			continue
		}
		logDeadLetter(mq.ExtractTraceContext(ctx, msg.Headers), msg)
		// 死信只记录，记录完即提交
		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit dead letter")
		}
	}
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := mq.KafkaHeaderCarrier(msg.Headers)
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers.Get(mq.HeaderOriginalTopic)).
		Str("original_partition", headers.Get(mq.HeaderOriginalPartition)).
		Str("original_offset", headers.Get(mq.HeaderOriginalOffset)).
		Str("exception_fqcn", headers.Get(mq.HeaderExceptionFqcn)).
		Str("exception_message", headers.Get(mq.HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("Dead letter order event")
}

// waitRetry 等待 d 后返回 true；ctx 先结束则返回 false
func waitRetry(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
