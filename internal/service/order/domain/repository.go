// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单的持久化接口（外部协作者）。
// 它位于领域层，但由基础设施层实现。所有失败都应包装为 ErrUpstreamUnavailable 或 ErrOrderNotFound。
type OrderRepository interface {
	// Submit 保存新提交的订单并返回已提交的版本
	Submit(ctx context.Context, order Order) (Order, error)

	// UpdateStatus 写入状态和对应的历史记录，返回已提交的订单
	UpdateStatus(ctx context.Context, orderID string, entry StatusHistoryEntry) (Order, error)

	// FindByID 读取单个订单，不存在时返回 ErrOrderNotFound
	FindByID(ctx context.Context, orderID string) (Order, error)

	// FetchForDate 返回门店在 loc 时区下 day 当天创建的订单，按创建时间倒序
	FetchForDate(ctx context.Context, branchID string, day time.Time, loc *time.Location) ([]Order, error)
}
