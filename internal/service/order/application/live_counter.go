// internal/service/order/application/live_counter.go
package application

import (
	"context"
	"time"

	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/service/order/domain"
)

// LiveCounterPoller 定时把视图中各状态的订单数写到 gauge。
// 它只读快照，不参与状态流转。
type LiveCounterPoller struct {
	view     *LiveSyncReconciler
	interval time.Duration
}

func NewLiveCounterPoller(view *LiveSyncReconciler, interval time.Duration) *LiveCounterPoller {
	return &LiveCounterPoller{view: view, interval: interval}
}

// Run 立即采集一次，之后按固定间隔采集，直到 ctx 结束
func (p *LiveCounterPoller) Run(ctx context.Context) error {
	p.Collect()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Collect()
		}
	}
}

// Collect 采集一次
func (p *LiveCounterPoller) Collect() {
	counts := p.view.CountByStatus()
	for _, s := range domain.AllStatuses() {
		metrics.LiveOrders.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
