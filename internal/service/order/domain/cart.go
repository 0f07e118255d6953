// internal/service/order/domain/cart.go
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Cart 是提交前的可编辑订单。所有方法都返回新值，调用方自己保存。
type Cart struct {
	BranchID string
	Type     OrderType
	Partner  *DeliveryPartner
	TableRef string
	Lines    []LineItem
	Discount ManualDiscount
}

// NewCart 创建一个空购物车
func NewCart(branchID string, orderType OrderType) Cart {
	return Cart{BranchID: branchID, Type: orderType}
}

func (c Cart) clone() Cart {
	n := c
	n.Lines = make([]LineItem, len(c.Lines))
	for i, l := range c.Lines {
		n.Lines[i] = l.clone()
	}
	if c.Partner != nil {
		p := *c.Partner
		n.Partner = &p
	}
	return n
}

// indexOf 用组合键查找行
func (c Cart) indexOf(key LineKey) int {
	for i, l := range c.Lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// Add 加入一行；组合键相同则合并数量。
// 组合键相同但计价条件不同的行会被拒绝，不会静默覆盖价格或折扣。
func (c Cart) Add(line LineItem) (Cart, error) {
	if line.Quantity <= 0 {
		return c, invalid("quantity", "must be a positive integer")
	}
	n := c.clone()
	if i := n.indexOf(line.Key()); i >= 0 {
		if !n.Lines[i].samePricing(line) {
			return c, invalid("unitBasePrice", "conflicts with an identical line priced differently")
		}
		n.Lines[i].Quantity += line.Quantity
		return n, nil
	}
	n.Lines = append(n.Lines, line.clone())
	return n, nil
}

// SetQuantity 修改数量，qty <= 0 等同于删除
func (c Cart) SetQuantity(key LineKey, qty int) Cart {
	if qty <= 0 {
		return c.Remove(key)
	}
	n := c.clone()
	if i := n.indexOf(key); i >= 0 {
		n.Lines[i].Quantity = qty
	}
	return n
}

// Remove 删除一行
func (c Cart) Remove(key LineKey) Cart {
	n := c.clone()
	if i := n.indexOf(key); i >= 0 {
		n.Lines = append(n.Lines[:i], n.Lines[i+1:]...)
	}
	return n
}

// WithDiscountAmount 设置整单固定金额折扣，清空百分比
func (c Cart) WithDiscountAmount(amount decimal.Decimal) Cart {
	n := c.clone()
	n.Discount = n.Discount.WithAmount(amount)
	return n
}

// WithDiscountPercentage 设置整单百分比折扣，清空固定金额
func (c Cart) WithDiscountPercentage(pct decimal.Decimal) Cart {
	n := c.clone()
	n.Discount = n.Discount.WithPercentage(pct)
	return n
}

// WithPartner 选择外卖平台；非外卖单也允许选择，但定价时不生效
func (c Cart) WithPartner(p *DeliveryPartner) Cart {
	n := c.clone()
	n.Partner = nil
	if p != nil {
		cp := *p
		n.Partner = &cp
	}
	return n
}

// PricingInput 组装定价输入
func (c Cart) PricingInput(tax TaxConfig) PricingInput {
	return PricingInput{Lines: c.Lines, Type: c.Type, Partner: c.Partner, Discount: c.Discount, Tax: tax}
}

// Submit 定价并生成已提交订单，初始状态为 pending
func (c Cart) Submit(id string, tax TaxConfig, now time.Time) (Order, error) {
	if len(c.Lines) == 0 {
		return Order{}, invalid("lines", "must not be empty")
	}
	if id == "" {
		return Order{}, errors.New("cannot submit order without id")
	}
	totals, err := Price(c.PricingInput(tax))
	if err != nil {
		return Order{}, err
	}
	n := c.clone()
	return Order{
		ID:        id,
		BranchID:  n.BranchID,
		Type:      n.Type,
		Partner:   n.Partner,
		TableRef:  n.TableRef,
		Lines:     n.Lines,
		Discount:  n.Discount,
		Tax:       tax,
		Totals:    totals,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}
