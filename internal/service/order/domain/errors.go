// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrNoteRequired        = errors.New("a note is required to cancel this order")
	ErrSyncConflict        = errors.New("sync conflict")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConfigUnavailable   = errors.New("branch configuration is not loaded")
	ErrOrderNotFound       = errors.New("order not found")
)

// ValidationError 描述定价输入中的某个非法字段
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError 是状态流转失败的具体原因。Kind 为 ErrInvalidTransition 或 ErrNoteRequired。
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
	Reason  string
	Kind    error
}

func (e *TransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("order %s: cannot move from %s to %s: %v", e.OrderID, e.From, e.To, e.Kind)
	}
	return fmt.Sprintf("order %s: cannot move from %s to %s: %s", e.OrderID, e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return e.Kind }
