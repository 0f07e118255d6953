// internal/service/order/domain/branch.go
package domain

import "time"

// ReceiptSettings 是门店的小票设置，排版本身不在这里处理
type ReceiptSettings struct {
	Header      string `json:"header"`
	Footer      string `json:"footer"`
	ShowTaxLine bool   `json:"showTaxLine"`
	Copies      int    `json:"copies"`
}

// GuardRule 是门店配置的一条流转规则，Expression 求值为 false 时拒绝流转
type GuardRule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

// BranchConfig 是门店配置的只读快照
type BranchConfig struct {
	BranchID           string          `json:"branchId"`
	Name               string          `json:"name"`
	TimeZone           string          `json:"timeZone"`
	RequiresCancelNote bool            `json:"requiresCancelNote"`
	Tax                TaxConfig       `json:"tax"`
	Receipt            ReceiptSettings `json:"receipt"`
	Guards             []GuardRule     `json:"guards,omitempty"`
}

// Location 返回门店时区，非法或为空时使用 UTC
func (c BranchConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
