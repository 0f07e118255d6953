// internal/service/order/domain/lifecycle.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransitionGuard 是门店级的额外流转规则（例如 CEL 表达式）。
// 返回错误即拒绝本次流转。
type TransitionGuard interface {
	Check(order Order, target Status, note string) error
}

// TransitionPolicy 是从门店配置得到的流转前置条件
type TransitionPolicy struct {
	RequiresCancelNote bool
	Guards             []TransitionGuard
}

// TransitionRequest 描述一次状态变更请求
type TransitionRequest struct {
	Target Status
	Note   string
	Actor  string
	At     time.Time
}

// TransitionResult 是成功流转后的结果
type TransitionResult struct {
	Order Order
	From  Status
	Entry StatusHistoryEntry
	// ReceiptNeeded 仅在进入 paid 时为 true，Order 已是流转后的状态
	ReceiptNeeded bool
}

// RequestTransition 校验并执行一次状态流转。
// 入参 order 不会被修改；失败时不产生任何变化。
func RequestTransition(order Order, req TransitionRequest, policy TransitionPolicy) (TransitionResult, error) {
	from := order.Status
	if !from.CanTransitionTo(req.Target) {
		return TransitionResult{}, &TransitionError{
			OrderID: order.ID, From: from, To: req.Target,
			Reason: reasonNotAllowed(from),
			Kind:   ErrInvalidTransition,
		}
	}
	if req.Target == StatusCancelled && policy.RequiresCancelNote && strings.TrimSpace(req.Note) == "" {
		return TransitionResult{}, &TransitionError{
			OrderID: order.ID, From: from, To: req.Target,
			Reason: "this branch requires a cancellation note",
			Kind:   ErrNoteRequired,
		}
	}
	for _, g := range policy.Guards {
		if err := g.Check(order, req.Target, req.Note); err != nil {
			return TransitionResult{}, err
		}
	}

	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	entry := StatusHistoryEntry{
		ID:    uuid.NewString(),
		From:  from,
		To:    req.Target,
		Actor: req.Actor,
		Note:  req.Note,
		At:    at,
	}

	next := order.Clone()
	next.History = append(next.History, entry)
	next.Status = req.Target

	return TransitionResult{
		Order:         next,
		From:          from,
		Entry:         entry,
		ReceiptNeeded: req.Target == StatusPaid,
	}, nil
}

func reasonNotAllowed(from Status) string {
	if !from.Valid() {
		return "current status is unknown"
	}
	if from.Terminal() {
		return "order is already " + string(from)
	}
	allowed := from.AllowedTargets()
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return "allowed next states are " + strings.Join(names, ", ")
}
