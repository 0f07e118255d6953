// internal/service/order/domain/event.go
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType 是推送通道上的事件种类
type EventType string

const (
	EventOrderCreated EventType = "order.created"
	EventOrderUpdated EventType = "order.updated"
)

// OrderEvent 是推送通道投递的消息，携带完整订单快照
type OrderEvent struct {
	Type       EventType `json:"type"`
	Order      Order     `json:"order"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewOrderCreated 构造 order.created 事件
func NewOrderCreated(o Order) OrderEvent {
	return OrderEvent{Type: EventOrderCreated, Order: o.Clone(), OccurredAt: time.Now()}
}

// NewOrderUpdated 构造 order.updated 事件
func NewOrderUpdated(o Order) OrderEvent {
	return OrderEvent{Type: EventOrderUpdated, Order: o.Clone(), OccurredAt: time.Now()}
}

// Validate 无法安全合并的事件一律视为冲突
func (e OrderEvent) Validate() error {
	switch e.Type {
	case EventOrderCreated, EventOrderUpdated:
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrSyncConflict, e.Type)
	}
	if e.Order.ID == "" {
		return fmt.Errorf("%w: %s event without order id", ErrSyncConflict, e.Type)
	}
	if !e.Order.Status.Valid() {
		return fmt.Errorf("%w: order %s has unknown status %q", ErrSyncConflict, e.Order.ID, e.Order.Status)
	}
	return nil
}

// Encode 序列化为 JSON
func (e OrderEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeOrderEvent 反序列化并校验
func DecodeOrderEvent(data []byte) (OrderEvent, error) {
	var e OrderEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: malformed event: %v", ErrSyncConflict, err)
	}
	if err := e.Validate(); err != nil {
		return OrderEvent{}, err
	}
	return e, nil
}

// ReceiptPayload 是打印/通知所需的最小数据
type ReceiptPayload struct {
	BranchID    string          `json:"branchId"`
	BranchName  string          `json:"branchName"`
	Order       Order           `json:"order"`
	Tax         TaxConfig       `json:"tax"`
	Receipt     ReceiptSettings `json:"receipt"`
	RequestedAt time.Time       `json:"requestedAt"`
}
