// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "pending"    // 已提交，等待门店确认
	StatusConfirmed Status = "confirmed"  // 已确认
	StatusCooking   Status = "cooking"    // 后厨制作中
	StatusReady     Status = "ready"      // 出餐完成
	StatusInService Status = "in_service" // 上菜/配送中
	StatusPaid      Status = "paid"       // 已结账（终态）
	StatusCancelled Status = "cancelled"  // 已取消（终态）
)

// transitions 是状态流转表。切片顺序有意义：第一个元素就是"下一步主操作"。
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCooking, StatusCancelled},
	StatusCooking:   {StatusReady},
	StatusReady:     {StatusInService},
	StatusInService: {StatusPaid},
	StatusPaid:      {},
	StatusCancelled: {},
}

// AllStatuses 按生命周期顺序返回全部状态
func AllStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusCooking, StatusReady, StatusInService, StatusPaid, StatusCancelled}
}

// Valid 判断是否为已知状态
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal 终态没有任何出边
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// AllowedTargets 返回 s 可以流转到的状态（副本）
func (s Status) AllowedTargets() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo 判断 s -> target 是否在流转表中
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// NextAction 返回界面上唯一主按钮对应的目标状态。终态返回 false。
func NextAction(s Status) (Status, bool) {
	next := transitions[s]
	if len(next) == 0 {
		return "", false
	}
	return next[0], true
}
