package port

import "context"

// OrderLocker 串行化同一订单上的状态变更
type OrderLocker interface {
	// Lock 获取 orderID 的锁，返回释放函数
	Lock(ctx context.Context, orderID string) (unlock func(), err error)
}
