package application

import (
	"context"
	"testing"
	"time"

	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/service/order/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLiveCounterPoller_Collect(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))
	r.OnCreated(orderAt("b", domain.StatusPending, testDay.Add(2*time.Hour)))
	r.OnCreated(orderAt("c", domain.StatusCooking, testDay.Add(3*time.Hour)))

	NewLiveCounterPoller(r, time.Hour).Collect()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LiveOrders.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LiveOrders.WithLabelValues("cooking")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LiveOrders.WithLabelValues("paid")))
}

func TestLiveCounterPoller_RunStopsWithContext(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewLiveCounterPoller(r, 5*time.Millisecond).Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
