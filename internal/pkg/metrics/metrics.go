// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orderdesk"

var (
	// TransitionsTotal 按目标状态和结果统计状态流转
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Status transitions requested, by target status and result.",
	}, []string{"target", "result"})

	// PricingRejectedTotal 定价输入校验失败次数，按字段
	PricingRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pricing_rejected_total",
		Help:      "Pricing inputs rejected by validation, by field.",
	}, []string{"field"})

	// ReconcileTotal 推送事件合并结果
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_events_total",
		Help:      "Pushed order events applied to the live view, by event type and outcome.",
	}, []string{"type", "outcome"})

	// ReceiptsTotal 小票触发结果：fired / failed / config_unavailable
	ReceiptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_total",
		Help:      "Receipt side effects, by result.",
	}, []string{"result"})

	// LiveOrders 当前视图中各状态的订单数，由轮询器定时刷新
	LiveOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_orders",
		Help:      "Orders in the selected day's live view, by status.",
	}, []string{"status"})
)

// Result 标签值
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)
