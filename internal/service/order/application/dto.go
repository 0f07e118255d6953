// internal/service/order/application/dto.go
package application

import (
	"errors"
	"fmt"

	"orderdesk/internal/service/order/domain"

	"github.com/shopspring/decimal"
)

// CartRequest 是预览和提交订单用例的输入
type CartRequest struct {
	Type               domain.OrderType        `json:"type"`
	Partner            *domain.DeliveryPartner `json:"partner,omitempty"`
	TableRef           string                  `json:"tableRef,omitempty"`
	Lines              []domain.LineItem       `json:"lines"`
	DiscountAmount     *decimal.Decimal        `json:"discountAmount,omitempty"`
	DiscountPercentage *decimal.Decimal        `json:"discountPercentage,omitempty"`
}

// ToCart 按收银台的操作顺序重建购物车：相同组合键的行合并，两种整单折扣同时给出时固定金额生效
func (r CartRequest) ToCart(branchID string) (domain.Cart, error) {
	cart := domain.NewCart(branchID, r.Type).WithPartner(r.Partner)
	cart.TableRef = r.TableRef
	for i, l := range r.Lines {
		var err error
		if cart, err = cart.Add(l); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				return domain.Cart{}, &domain.ValidationError{Field: fmt.Sprintf("lines[%d].%s", i, ve.Field), Reason: ve.Reason}
			}
			return domain.Cart{}, err
		}
	}
	switch {
	case r.DiscountAmount != nil && !r.DiscountAmount.IsZero():
		cart = cart.WithDiscountAmount(*r.DiscountAmount)
	case r.DiscountPercentage != nil:
		cart = cart.WithDiscountPercentage(*r.DiscountPercentage)
	}
	return cart, nil
}

// ChangeStatusCommand 是状态变更用例的输入
type ChangeStatusCommand struct {
	OrderID string        `json:"-"`
	Target  domain.Status `json:"target"`
	Note    string        `json:"note,omitempty"`
	Actor   string        `json:"actor"`
}

// ChangeStatusResult 是状态变更用例的输出。
// 小票失败不会回滚已提交的状态，只在 ReceiptError 中报告。
type ChangeStatusResult struct {
	Order        domain.Order  `json:"order"`
	From         domain.Status `json:"from"`
	ReceiptFired bool          `json:"receiptFired"`
	ReceiptError string        `json:"receiptError,omitempty"`
}
