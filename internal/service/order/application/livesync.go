// internal/service/order/application/livesync.go
package application

import (
	"sort"
	"sync"
	"time"

	"orderdesk/internal/service/order/domain"
)

// Outcome 是一次合并的结果
type Outcome string

const (
	OutcomeAdded     Outcome = "added"
	OutcomeReplaced  Outcome = "replaced"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeOtherDay  Outcome = "other_day"
	OutcomeNotInView Outcome = "not_in_view"
	OutcomeConflict  Outcome = "conflict"
)

// Changed 表示视图是否发生了变化
func (o Outcome) Changed() bool {
	return o == OutcomeAdded || o == OutcomeReplaced
}

// ChangeListener 在视图变化后、释放锁之前被调用，保证与视图顺序一致。
// 监听者不能阻塞，也不能回调 reconciler。
type ChangeListener func(outcome Outcome, order domain.Order)

// ResetListener 在视图整体替换（切换日期或重新拉取）后、释放锁之前被调用
type ResetListener func(day time.Time, orders []domain.Order)

// LiveSyncReconciler 维护所选日期的订单视图（最新的在前）。
// 推送事件和本地流转都经过这里，由一把互斥锁串行化。
type LiveSyncReconciler struct {
	mu     sync.RWMutex
	day    time.Time
	loc    *time.Location
	orders []domain.Order

	listenerMu     sync.RWMutex
	listeners      []ChangeListener
	resetListeners []ResetListener
}

// NewLiveSyncReconciler 创建一个以 day 为所选日期的空视图
func NewLiveSyncReconciler(day time.Time, loc *time.Location) *LiveSyncReconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &LiveSyncReconciler{day: day, loc: loc}
}

// Subscribe 注册变化监听
func (r *LiveSyncReconciler) Subscribe(l ChangeListener) {
	r.listenerMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenerMu.Unlock()
}

// SubscribeReset 注册视图替换监听
func (r *LiveSyncReconciler) SubscribeReset(l ResetListener) {
	r.listenerMu.Lock()
	r.resetListeners = append(r.resetListeners, l)
	r.listenerMu.Unlock()
}

// Reset 切换所选日期并用拉取到的订单替换视图。
// 不属于该日期的订单和重复 id 会被丢弃。
func (r *LiveSyncReconciler) Reset(day time.Time, loc *time.Location, orders []domain.Order) {
	if loc == nil {
		loc = time.UTC
	}
	seen := make(map[string]struct{}, len(orders))
	view := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if _, dup := seen[o.ID]; dup || !o.CreatedOn(day, loc) {
			continue
		}
		seen[o.ID] = struct{}{}
		view = append(view, o.Clone())
	}
	sort.SliceStable(view, func(i, j int) bool { return view[i].CreatedAt.After(view[j].CreatedAt) })

	r.mu.Lock()
	r.day, r.loc, r.orders = day, loc, view
	r.notifyReset(day, view)
	r.mu.Unlock()
}

// OnCreated 合并 order.created：重复 id 忽略，非所选日期丢弃，否则放到最前
func (r *LiveSyncReconciler) OnCreated(o domain.Order) Outcome {
	r.mu.Lock()
	outcome := OutcomeAdded
	switch {
	case r.indexOf(o.ID) >= 0:
		outcome = OutcomeDuplicate
	case !o.CreatedOn(r.day, r.loc):
		outcome = OutcomeOtherDay
	default:
		r.orders = append([]domain.Order{o.Clone()}, r.orders...)
	}
	r.notify(outcome, o)
	r.mu.Unlock()
	return outcome
}

// OnUpdated 合并 order.updated：原位替换，不在视图中则什么也不做
func (r *LiveSyncReconciler) OnUpdated(o domain.Order) Outcome {
	r.mu.Lock()
	outcome := OutcomeNotInView
	if i := r.indexOf(o.ID); i >= 0 {
		r.orders[i] = o.Clone()
		outcome = OutcomeReplaced
	}
	r.notify(outcome, o)
	r.mu.Unlock()
	return outcome
}

// Apply 校验并合并一条推送事件，无法安全合并的事件返回 ErrSyncConflict 且不改变视图
func (r *LiveSyncReconciler) Apply(ev domain.OrderEvent) (Outcome, error) {
	if err := ev.Validate(); err != nil {
		return OutcomeConflict, err
	}
	if ev.Type == domain.EventOrderCreated {
		return r.OnCreated(ev.Order), nil
	}
	return r.OnUpdated(ev.Order), nil
}

// Get 返回视图中的订单副本
func (r *LiveSyncReconciler) Get(id string) (domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.orders[i].Clone(), true
	}
	return domain.Order{}, false
}

// Snapshot 返回视图的深拷贝
func (r *LiveSyncReconciler) Snapshot() []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, len(r.orders))
	for i, o := range r.orders {
		out[i] = o.Clone()
	}
	return out
}

// View 在持有读锁期间把视图副本交给 fn，fn 执行期间视图不会变化。
// 用于需要"快照加订阅"原子完成的场景，fn 不能回调 reconciler。
func (r *LiveSyncReconciler) View(fn func(orders []domain.Order)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, len(r.orders))
	for i, o := range r.orders {
		out[i] = o.Clone()
	}
	fn(out)
}

// Day 返回所选日期及其时区
func (r *LiveSyncReconciler) Day() (time.Time, *time.Location) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.day, r.loc
}

// CountByStatus 统计视图中各状态的订单数
func (r *LiveSyncReconciler) CountByStatus() map[domain.Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.Status]int, len(domain.AllStatuses()))
	for _, o := range r.orders {
		counts[o.Status]++
	}
	return counts
}

func (r *LiveSyncReconciler) indexOf(id string) int {
	for i := range r.orders {
		if r.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *LiveSyncReconciler) notify(outcome Outcome, o domain.Order) {
	if !outcome.Changed() {
		return
	}
	r.listenerMu.RLock()
	listeners := r.listeners
	r.listenerMu.RUnlock()
	for _, l := range listeners {
		l(outcome, o.Clone())
	}
}

func (r *LiveSyncReconciler) notifyReset(day time.Time, view []domain.Order) {
	r.listenerMu.RLock()
	listeners := r.resetListeners
	r.listenerMu.RUnlock()
	for _, l := range listeners {
		orders := make([]domain.Order, len(view))
		for i, o := range view {
			orders[i] = o.Clone()
		}
		l(day, orders)
	}
}
