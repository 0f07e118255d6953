// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"

	"orderdesk/internal/service/order/domain"

	"github.com/pkg/errors"
)

// FromDomainOrder 将领域订单转换为数据库模型，历史记录单独写入
func FromDomainOrder(o domain.Order) (*OrderModel, error) {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, errors.Wrap(err, "encode lines")
	}
	totals, err := json.Marshal(o.Totals)
	if err != nil {
		return nil, errors.Wrap(err, "encode totals")
	}
	var partner []byte
	if o.Partner != nil {
		if partner, err = json.Marshal(o.Partner); err != nil {
			return nil, errors.Wrap(err, "encode partner")
		}
	}
	return &OrderModel{
		ID:                 o.ID,
		BranchID:           o.BranchID,
		Type:               string(o.Type),
		TableRef:           o.TableRef,
		PartnerJSON:        string(partner),
		LinesJSON:          string(lines),
		TotalsJSON:         string(totals),
		DiscountAmount:     o.Discount.Amount,
		DiscountPercentage: o.Discount.Percentage,
		TaxName:            o.Tax.Name,
		TaxRate:            o.Tax.Rate,
		TaxActive:          o.Tax.Active,
		GrandTotal:         o.Totals.GrandTotal,
		Status:             string(o.Status),
		CreatedAt:          o.CreatedAt,
	}, nil
}

// ToDomainOrder 将数据库模型转换为领域订单
func ToDomainOrder(m *OrderModel) (domain.Order, error) {
	o := domain.Order{
		ID:        m.ID,
		BranchID:  m.BranchID,
		Type:      domain.OrderType(m.Type),
		TableRef:  m.TableRef,
		Discount:  domain.ManualDiscount{Amount: m.DiscountAmount, Percentage: m.DiscountPercentage},
		Tax:       domain.TaxConfig{Name: m.TaxName, Rate: m.TaxRate, Active: m.TaxActive},
		Status:    domain.Status(m.Status),
		CreatedAt: m.CreatedAt,
	}
	if err := json.Unmarshal([]byte(m.LinesJSON), &o.Lines); err != nil {
		return domain.Order{}, errors.Wrapf(err, "order %s: decode lines", m.ID)
	}
	if err := json.Unmarshal([]byte(m.TotalsJSON), &o.Totals); err != nil {
		return domain.Order{}, errors.Wrapf(err, "order %s: decode totals", m.ID)
	}
	if m.PartnerJSON != "" {
		o.Partner = &domain.DeliveryPartner{}
		if err := json.Unmarshal([]byte(m.PartnerJSON), o.Partner); err != nil {
			return domain.Order{}, errors.Wrapf(err, "order %s: decode partner", m.ID)
		}
	}
	for _, h := range m.History {
		o.History = append(o.History, ToDomainHistory(h))
	}
	return o, nil
}

// FromDomainHistory 将历史记录转换为数据库模型
func FromDomainHistory(orderID string, e domain.StatusHistoryEntry) *StatusHistoryModel {
	return &StatusHistoryModel{
		ID:         e.ID,
		OrderID:    orderID,
		FromStatus: string(e.From),
		ToStatus:   string(e.To),
		Actor:      e.Actor,
		Note:       e.Note,
		At:         e.At,
	}
}

// ToDomainHistory 将数据库模型转换为历史记录
func ToDomainHistory(m StatusHistoryModel) domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{
		ID:    m.ID,
		From:  domain.Status(m.FromStatus),
		To:    domain.Status(m.ToStatus),
		Actor: m.Actor,
		Note:  m.Note,
		At:    m.At,
	}
}
