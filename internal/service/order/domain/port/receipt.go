package port

import (
	"context"

	"orderdesk/internal/service/order/domain"
)

// ReceiptSink 是打印/通知的出站端口。物理打印成功与否不在核心关注范围内。
type ReceiptSink interface {
	Print(ctx context.Context, payload domain.ReceiptPayload) error
}
