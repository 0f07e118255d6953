package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderEvent_EncodeDecode(t *testing.T) {
	o := orderIn(StatusCooking)
	o.Lines = []LineItem{line("a", "3.10", 2)}
	o.Totals.GrandTotal = d("6.20")

	raw, err := NewOrderUpdated(o).Encode()
	require.NoError(t, err)

	ev, err := DecodeOrderEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, EventOrderUpdated, ev.Type)
	assert.Equal(t, "ord-1", ev.Order.ID)
	assert.True(t, ev.Order.Totals.GrandTotal.Equal(d("6.20")))
	assert.True(t, ev.Order.CreatedAt.Equal(fixedNow))
}

func TestDecodeOrderEvent_Conflicts(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"type":`,
		"unknown type":   `{"type":"order.deleted","order":{"id":"x","status":"pending"}}`,
		"missing id":     `{"type":"order.created","order":{"status":"pending"}}`,
		"unknown status": `{"type":"order.updated","order":{"id":"x","status":"archived"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeOrderEvent([]byte(raw))
			assert.ErrorIs(t, err, ErrSyncConflict)
		})
	}
}

func TestOrder_CreatedOn(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	o := Order{CreatedAt: time.Date(2026, 10, 17, 17, 0, 0, 0, time.UTC)} // 上海时间 18 日 01:00
	assert.False(t, o.CreatedOn(time.Date(2026, 10, 17, 0, 0, 0, 0, loc), loc))
	assert.True(t, o.CreatedOn(time.Date(2026, 10, 18, 0, 0, 0, 0, loc), loc))
	assert.True(t, o.CreatedOn(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), nil))
}
