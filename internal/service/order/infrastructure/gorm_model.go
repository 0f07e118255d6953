// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应 orders 表。行项目、外卖平台和价格明细以 JSON 保存，
// 需要查询或对账的金额单独成列。
type OrderModel struct {
	ID                 string          `gorm:"primaryKey;type:varchar(64)"`
	BranchID           string          `gorm:"type:varchar(64);index:idx_branch_created,priority:1;not null"`
	Type               string          `gorm:"type:varchar(16);not null"`
	TableRef           string          `gorm:"type:varchar(32)"`
	PartnerJSON        string          `gorm:"column:partner_json;type:text"`
	LinesJSON          string          `gorm:"column:lines_json;type:mediumtext;not null"`
	TotalsJSON         string          `gorm:"column:totals_json;type:text;not null"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxName            string          `gorm:"type:varchar(64)"`
	TaxRate            decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxActive          bool
	GrandTotal         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status             string          `gorm:"type:varchar(16);index;not null"`
	CreatedAt          time.Time       `gorm:"index:idx_branch_created,priority:2;not null"`
	UpdatedAt          time.Time

	History []StatusHistoryModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// StatusHistoryModel 对应 order_status_history 表，只追加不修改
type StatusHistoryModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	OrderID    string    `gorm:"type:varchar(64);index;not null"`
	FromStatus string    `gorm:"type:varchar(16);not null"`
	ToStatus   string    `gorm:"type:varchar(16);not null"`
	Actor      string    `gorm:"type:varchar(64)"`
	Note       string    `gorm:"type:varchar(512)"`
	At         time.Time `gorm:"not null"`
}

// TableName 指定 GORM 应该使用的表名
func (StatusHistoryModel) TableName() string {
	return "order_status_history"
}
