package port

import (
	"context"

	"orderdesk/internal/service/order/domain"
)

// OrderEventPublisher 把本地提交/流转的结果广播给其他客户端
type OrderEventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
