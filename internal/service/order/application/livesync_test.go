package application

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"orderdesk/internal/service/order/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(orders []domain.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestReconciler_OnCreatedPrependsAndDedupes(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)

	assert.Equal(t, OutcomeAdded, r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(8*time.Hour))))
	assert.Equal(t, OutcomeAdded, r.OnCreated(orderAt("b", domain.StatusPending, testDay.Add(9*time.Hour))))
	assert.Equal(t, OutcomeDuplicate, r.OnCreated(orderAt("a", domain.StatusConfirmed, testDay.Add(8*time.Hour))))

	snap := r.Snapshot()
	assert.Equal(t, []string{"b", "a"}, ids(snap))
	assert.Equal(t, domain.StatusPending, snap[1].Status, "duplicate create must not overwrite")
}

func TestReconciler_OnCreatedOtherDayDropped(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	assert.Equal(t, OutcomeOtherDay, r.OnCreated(orderAt("x", domain.StatusPending, testDay.Add(-time.Minute))))
	assert.Empty(t, r.Snapshot())
}

func TestReconciler_OnUpdatedReplacesInPlace(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))
	r.OnCreated(orderAt("b", domain.StatusPending, testDay.Add(2*time.Hour)))
	r.OnCreated(orderAt("c", domain.StatusPending, testDay.Add(3*time.Hour)))

	assert.Equal(t, OutcomeReplaced, r.OnUpdated(orderAt("b", domain.StatusConfirmed, testDay.Add(2*time.Hour))))
	assert.Equal(t, OutcomeNotInView, r.OnUpdated(orderAt("zzz", domain.StatusConfirmed, testDay)))

	snap := r.Snapshot()
	assert.Equal(t, []string{"c", "b", "a"}, ids(snap))
	assert.Equal(t, domain.StatusConfirmed, snap[1].Status)
}

func TestReconciler_ReplayIsIdempotent(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	created := domain.NewOrderCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))
	updated := domain.NewOrderUpdated(orderAt("a", domain.StatusConfirmed, testDay.Add(time.Hour)))

	for i := 0; i < 3; i++ {
		_, err := r.Apply(created)
		require.NoError(t, err)
		_, err = r.Apply(updated)
		require.NoError(t, err)
	}
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, domain.StatusConfirmed, snap[0].Status)
}

func TestReconciler_ApplyConflictLeavesViewUntouched(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))

	outcome, err := r.Apply(domain.OrderEvent{Type: "order.deleted", Order: orderAt("a", domain.StatusPending, testDay)})
	assert.ErrorIs(t, err, domain.ErrSyncConflict)
	assert.Equal(t, OutcomeConflict, outcome)

	_, err = r.Apply(domain.OrderEvent{Type: domain.EventOrderUpdated, Order: domain.Order{Status: domain.StatusPaid}})
	assert.ErrorIs(t, err, domain.ErrSyncConflict)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, domain.StatusPending, snap[0].Status)
}

func TestReconciler_ResetFiltersAndSorts(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	r.OnCreated(orderAt("old", domain.StatusPending, testDay.Add(time.Hour)))

	next := testDay.AddDate(0, 0, 1)
	r.Reset(next, time.UTC, []domain.Order{
		orderAt("m", domain.StatusPending, next.Add(10*time.Hour)),
		orderAt("n", domain.StatusPending, next.Add(12*time.Hour)),
		orderAt("m", domain.StatusPending, next.Add(10*time.Hour)),
		orderAt("stale", domain.StatusPending, testDay.Add(time.Hour)),
	})

	assert.Equal(t, []string{"n", "m"}, ids(r.Snapshot()))
	day, _ := r.Day()
	assert.Equal(t, next, day)
}

func TestReconciler_SnapshotIsACopy(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))
	snap := r.Snapshot()
	snap[0].Status = domain.StatusPaid

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestReconciler_ConcurrentEventsNeverDuplicate(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("o-%d", i)
				created := testDay.Add(time.Duration(i) * time.Minute)
				r.OnCreated(orderAt(id, domain.StatusPending, created))
				r.OnUpdated(orderAt(id, domain.StatusConfirmed, created))
			}
		}(w)
	}
	wg.Wait()

	snap := r.Snapshot()
	require.Len(t, snap, 50)
	seen := map[string]bool{}
	for _, o := range snap {
		assert.False(t, seen[o.ID], "duplicate %s", o.ID)
		seen[o.ID] = true
	}
	assert.Equal(t, 50, r.CountByStatus()[domain.StatusConfirmed]+r.CountByStatus()[domain.StatusPending])
}

func TestReconciler_ListenerSeesOnlyChanges(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	var got []Outcome
	r.Subscribe(func(o Outcome, _ domain.Order) { got = append(got, o) })

	r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))
	r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))
	r.OnUpdated(orderAt("a", domain.StatusConfirmed, testDay.Add(time.Hour)))
	r.OnUpdated(orderAt("b", domain.StatusConfirmed, testDay.Add(time.Hour)))

	assert.Equal(t, []Outcome{OutcomeAdded, OutcomeReplaced}, got)
}

func TestReconciler_ResetNotifiesWithNewView(t *testing.T) {
	r := NewLiveSyncReconciler(testDay, time.UTC)
	var changes []Outcome
	r.Subscribe(func(o Outcome, _ domain.Order) { changes = append(changes, o) })
	var resets [][]string
	var resetDay time.Time
	r.SubscribeReset(func(day time.Time, orders []domain.Order) {
		resetDay = day
		resets = append(resets, ids(orders))
	})

	r.OnCreated(orderAt("a", domain.StatusPending, testDay.Add(time.Hour)))
	next := testDay.AddDate(0, 0, 1)
	r.Reset(next, time.UTC, []domain.Order{orderAt("b", domain.StatusPending, next.Add(time.Hour))})

	assert.Equal(t, []Outcome{OutcomeAdded}, changes)
	require.Len(t, resets, 1)
	assert.Equal(t, []string{"b"}, resets[0])
	assert.Equal(t, next, resetDay)
	assert.Equal(t, []string{"b"}, ids(r.Snapshot()))

	// 切换后旧日期的推送不再进入视图
	assert.Equal(t, OutcomeOtherDay, r.OnCreated(orderAt("c", domain.StatusPending, testDay.Add(2*time.Hour))))
}
