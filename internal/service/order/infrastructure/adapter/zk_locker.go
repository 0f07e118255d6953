// internal/service/order/infrastructure/adapter/zk_locker.go
package adapter

import (
	"context"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/zookeeper"
	"orderdesk/internal/service/order/domain/port"
)

// ZKOrderLocker 实现了 port.OrderLocker，多个收银实例同时修改同一订单时串行化。
// 进程内先用 local 排队，避免同一实例对同一订单创建多余的顺序节点。
type ZKOrderLocker struct {
	conn  *zookeeper.Conn
	root  string
	local port.OrderLocker
}

var _ port.OrderLocker = (*ZKOrderLocker)(nil)

func NewZKOrderLocker(conn *zookeeper.Conn, root string, local port.OrderLocker) *ZKOrderLocker {
	return &ZKOrderLocker{conn: conn, root: root, local: local}
}

// Lock 获取订单锁，返回的函数用于释放
func (l *ZKOrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lock, err := zookeeper.NewDistributedLock(l.conn, l.root, "order-"+orderID)
	if err != nil {
		unlockLocal()
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		unlockLocal()
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Release order lock failed")
		}
		unlockLocal()
	}, nil
}
