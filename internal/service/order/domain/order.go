// internal/service/order/domain/order.go
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType 区分堂食、外带和外卖
type OrderType string

const (
	OrderTypeInHouse  OrderType = "in_house"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// Modifier 是行项目上的加料/规格选项，价格叠加在基础价上
type Modifier struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem 是订单中的一行。UnitBasePrice 已经是尺码价（若选择了尺码）或商品价。
type LineItem struct {
	ProductID          string          `json:"productId"`
	ProductName        string          `json:"productName"`
	SizeID             string          `json:"sizeId,omitempty"`
	SizeName           string          `json:"sizeName,omitempty"`
	Quantity           int             `json:"quantity"`
	UnitBasePrice      decimal.Decimal `json:"unitBasePrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	DiscountActive     bool            `json:"discountActive"`
	Modifiers          []Modifier      `json:"modifiers,omitempty"`
	Remark             string          `json:"remark,omitempty"`
	Presets            []string        `json:"presets,omitempty"`
}

// LineKey 是行项目的身份：商品 + 尺码 + 排序后的加料 ID + 备注 + 排序后的预设。
// 购物车用它判断"同一行"，而不是比较序列化后的字符串。
type LineKey struct {
	ProductID string
	SizeID    string
	Modifiers string
	Remark    string
	Presets   string
}

// Key 计算行项目的组合键
func (l LineItem) Key() LineKey {
	ids := make([]string, 0, len(l.Modifiers))
	for _, m := range l.Modifiers {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	presets := append([]string(nil), l.Presets...)
	sort.Strings(presets)
	return LineKey{
		ProductID: l.ProductID,
		SizeID:    l.SizeID,
		Modifiers: strings.Join(ids, ","),
		Remark:    strings.TrimSpace(l.Remark),
		Presets:   strings.Join(presets, ","),
	}
}

// samePricing 判断两行的计价条件是否一致，一致时才能合并数量
func (l LineItem) samePricing(o LineItem) bool {
	if !l.UnitBasePrice.Equal(o.UnitBasePrice) || l.DiscountActive != o.DiscountActive ||
		!l.DiscountPercentage.Equal(o.DiscountPercentage) || len(l.Modifiers) != len(o.Modifiers) {
		return false
	}
	prices := make(map[string]decimal.Decimal, len(l.Modifiers))
	for _, m := range l.Modifiers {
		prices[m.ID] = m.Price
	}
	for _, m := range o.Modifiers {
		if p, ok := prices[m.ID]; !ok || !p.Equal(m.Price) {
			return false
		}
	}
	return true
}

func (l LineItem) clone() LineItem {
	c := l
	if l.Modifiers != nil {
		c.Modifiers = append([]Modifier(nil), l.Modifiers...)
	}
	if l.Presets != nil {
		c.Presets = append([]string(nil), l.Presets...)
	}
	return c
}

// ManualDiscount 是整单手动折扣：金额和百分比互斥
type ManualDiscount struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// WithAmount 设置固定金额，同时清空百分比
func (m ManualDiscount) WithAmount(amount decimal.Decimal) ManualDiscount {
	return ManualDiscount{Amount: amount, Percentage: decimal.Zero}
}

// WithPercentage 设置百分比，同时清空固定金额
func (m ManualDiscount) WithPercentage(pct decimal.Decimal) ManualDiscount {
	return ManualDiscount{Amount: decimal.Zero, Percentage: pct}
}

// TaxConfig 是提交时从门店配置拍下的税率快照
type TaxConfig struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Active bool            `json:"active"`
}

// DeliveryPartner 外卖平台，订单只引用不持有
type DeliveryPartner struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Active             bool            `json:"active"`
	DiscountActive     bool            `json:"discountActive"`
}

// StatusHistoryEntry 记录一次状态流转，写入后不可修改
type StatusHistoryEntry struct {
	ID    string    `json:"id"`
	From  Status    `json:"from"`
	To    Status    `json:"to"`
	Actor string    `json:"actor"`
	Note  string    `json:"note,omitempty"`
	At    time.Time `json:"at"`
}

// Order 是订单聚合根。提交后只有 Status 会变化，History 只追加。
type Order struct {
	ID        string               `json:"id"`
	BranchID  string               `json:"branchId"`
	Type      OrderType            `json:"type"`
	Partner   *DeliveryPartner     `json:"partner,omitempty"`
	TableRef  string               `json:"tableRef,omitempty"`
	Lines     []LineItem           `json:"lines"`
	Discount  ManualDiscount       `json:"discount"`
	Tax       TaxConfig            `json:"tax"`
	Totals    Breakdown            `json:"totals"`
	Status    Status               `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
	History   []StatusHistoryEntry `json:"history,omitempty"`
}

// Clone 深拷贝，保证返回给调用方的值不会与内部状态共享底层数组
func (o Order) Clone() Order {
	c := o
	if o.Partner != nil {
		p := *o.Partner
		c.Partner = &p
	}
	if o.Lines != nil {
		c.Lines = make([]LineItem, len(o.Lines))
		for i, l := range o.Lines {
			c.Lines[i] = l.clone()
		}
	}
	if o.History != nil {
		c.History = append([]StatusHistoryEntry(nil), o.History...)
	}
	return c
}

// PricingInput 从已提交订单还原定价输入，用于重算校验
func (o Order) PricingInput() PricingInput {
	return PricingInput{
		Lines:    o.Lines,
		Type:     o.Type,
		Partner:  o.Partner,
		Discount: o.Discount,
		Tax:      o.Tax,
	}
}

// CreatedOn 判断订单是否创建于 loc 时区下的 day 那一天
func (o Order) CreatedOn(day time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	y1, m1, d1 := o.CreatedAt.In(loc).Date()
	y2, m2, d2 := day.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
