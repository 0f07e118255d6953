// internal/service/order/domain/pricing.go
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"orderdesk/internal/pkg/money"
)

// PricingInput 是定价引擎的全部输入，引擎不读取任何其他状态
type PricingInput struct {
	Lines    []LineItem
	Type     OrderType
	Partner  *DeliveryPartner
	Discount ManualDiscount
	Tax      TaxConfig
}

// Breakdown 是一次定价的结果，所有字段都已保留两位小数
type Breakdown struct {
	Subtotal                decimal.Decimal `json:"subtotal"`
	ModifiersTotal          decimal.Decimal `json:"modifiersTotal"`
	ItemDiscountTotal       decimal.Decimal `json:"itemDiscountTotal"`
	DeliveryPartnerDiscount decimal.Decimal `json:"deliveryPartnerDiscount"`
	OrderLevelDiscount      decimal.Decimal `json:"orderLevelDiscount"`
	TotalDiscount           decimal.Decimal `json:"totalDiscount"`
	TaxableAmount           decimal.Decimal `json:"taxableAmount"`
	TaxAmount               decimal.Decimal `json:"taxAmount"`
	GrandTotal              decimal.Decimal `json:"grandTotal"`
}

// MarshalJSON 金额统一输出两位小数，例如 "20.00"
func (b Breakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subtotal                string `json:"subtotal"`
		ModifiersTotal          string `json:"modifiersTotal"`
		ItemDiscountTotal       string `json:"itemDiscountTotal"`
		DeliveryPartnerDiscount string `json:"deliveryPartnerDiscount"`
		OrderLevelDiscount      string `json:"orderLevelDiscount"`
		TotalDiscount           string `json:"totalDiscount"`
		TaxableAmount           string `json:"taxableAmount"`
		TaxAmount               string `json:"taxAmount"`
		GrandTotal              string `json:"grandTotal"`
	}{
		Subtotal:                money.Format(b.Subtotal),
		ModifiersTotal:          money.Format(b.ModifiersTotal),
		ItemDiscountTotal:       money.Format(b.ItemDiscountTotal),
		DeliveryPartnerDiscount: money.Format(b.DeliveryPartnerDiscount),
		OrderLevelDiscount:      money.Format(b.OrderLevelDiscount),
		TotalDiscount:           money.Format(b.TotalDiscount),
		TaxableAmount:           money.Format(b.TaxableAmount),
		TaxAmount:               money.Format(b.TaxAmount),
		GrandTotal:              money.Format(b.GrandTotal),
	})
}

// Validate 拒绝非法输入。引擎不会截断任何值。
func (in PricingInput) Validate() error {
	for i, l := range in.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if l.Quantity <= 0 {
			return invalid(field+".quantity", "must be a positive integer")
		}
		if l.UnitBasePrice.IsNegative() {
			return invalid(field+".unitBasePrice", "must not be negative")
		}
		if !money.InPercentRange(l.DiscountPercentage) {
			return invalid(field+".discountPercentage", "must be within [0,100]")
		}
		for j, m := range l.Modifiers {
			if m.Price.IsNegative() {
				return invalid(fmt.Sprintf("%s.modifiers[%d].price", field, j), "must not be negative")
			}
		}
	}
	if in.Partner != nil && !money.InPercentRange(in.Partner.DiscountPercentage) {
		return invalid("partner.discountPercentage", "must be within [0,100]")
	}
	if in.Discount.Amount.IsNegative() {
		return invalid("discount.amount", "must not be negative")
	}
	if !money.InPercentRange(in.Discount.Percentage) {
		return invalid("discount.percentage", "must be within [0,100]")
	}
	if in.Tax.Rate.IsNegative() {
		return invalid("tax.rate", "must not be negative")
	}
	return nil
}

// Price 按固定顺序计算：小计 → 加料 → 单品折扣 → 外卖平台折扣 → 整单折扣 → 应税额 → 税 → 总计。
// 每一步单独舍入。
func Price(in PricingInput) (Breakdown, error) {
	if err := in.Validate(); err != nil {
		return Breakdown{}, err
	}

	var b Breakdown
	subtotal, modifiers, itemDiscount := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range in.Lines {
		subtotal = subtotal.Add(money.Times(l.UnitBasePrice, l.Quantity))
		for _, m := range l.Modifiers {
			modifiers = modifiers.Add(money.Times(m.Price, l.Quantity))
		}
		// 单品折扣只作用于基础价，加料不打折
		if l.DiscountActive && l.DiscountPercentage.IsPositive() {
			perUnit := l.UnitBasePrice.Mul(l.DiscountPercentage).Div(decimal.NewFromInt(100))
			itemDiscount = itemDiscount.Add(money.Times(perUnit, l.Quantity))
		}
	}
	b.Subtotal = money.Round2(subtotal)
	b.ModifiersTotal = money.Round2(modifiers)
	b.ItemDiscountTotal = money.Round2(itemDiscount)

	b.DeliveryPartnerDiscount = decimal.Zero
	if p := in.Partner; in.Type == OrderTypeDelivery && p != nil && p.DiscountActive && p.DiscountPercentage.IsPositive() {
		b.DeliveryPartnerDiscount = money.Percent(b.Subtotal, p.DiscountPercentage)
	}

	// 金额优先；两者同时非零时以金额为准
	switch {
	case in.Discount.Amount.IsPositive():
		b.OrderLevelDiscount = money.Round2(in.Discount.Amount)
	case in.Discount.Percentage.IsPositive():
		b.OrderLevelDiscount = money.Percent(b.Subtotal, in.Discount.Percentage)
	default:
		b.OrderLevelDiscount = decimal.Zero
	}

	b.TotalDiscount = money.Round2(b.ItemDiscountTotal.Add(b.OrderLevelDiscount).Add(b.DeliveryPartnerDiscount))
	b.TaxableAmount = money.NonNegative(money.Round2(b.Subtotal.Add(b.ModifiersTotal).Sub(b.TotalDiscount)))

	b.TaxAmount = decimal.Zero
	if in.Tax.Active && in.Tax.Rate.IsPositive() {
		b.TaxAmount = money.Percent(b.TaxableAmount, in.Tax.Rate)
	}
	b.GrandTotal = money.Round2(b.TaxableAmount.Add(b.TaxAmount))
	return b, nil
}
