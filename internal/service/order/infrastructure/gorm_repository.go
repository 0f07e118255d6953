// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"orderdesk/internal/service/order/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

var _ domain.OrderRepository = (*GormOrderRepository)(nil)

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Submit 写入新订单
func (r *GormOrderRepository) Submit(ctx context.Context, order domain.Order) (domain.Order, error) {
	model, err := FromDomainOrder(order)
	if err != nil {
		return domain.Order{}, err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domain.Order{}, unavailable(err, "submit order %s", order.ID)
	}
	return order.Clone(), nil
}

// UpdateStatus 在一个事务里做条件更新并追加历史。
// 只有当库里的状态仍是 entry.From 时才会更新，避免覆盖其他终端的并发修改。
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID string, entry domain.StatusHistoryEntry) (domain.Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", orderID, string(entry.From)).
			Update("status", string(entry.To))
		if res.Error != nil {
			return unavailable(res.Error, "update status of order %s", orderID)
		}
		if res.RowsAffected == 0 {
			var current OrderModel
			err := tx.Select("id", "status").Where("id = ?", orderID).First(&current).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			if err != nil {
				return unavailable(err, "load order %s", orderID)
			}
			return &domain.TransitionError{
				OrderID: orderID,
				From:    domain.Status(current.Status),
				To:      entry.To,
				Reason:  "status was changed by another terminal",
				Kind:    domain.ErrInvalidTransition,
			}
		}
		if err := tx.Create(FromDomainHistory(orderID, entry)).Error; err != nil {
			return unavailable(err, "append history of order %s", orderID)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, orderID)
}

// FindByID 读取订单及其历史
func (r *GormOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("at ASC") }).
		Where("id = ?", orderID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, unavailable(err, "find order %s", orderID)
	}
	return ToDomainOrder(&model)
}

// FetchForDate 按门店时区的自然日查询，最新的在前
func (r *GormOrderRepository) FetchForDate(ctx context.Context, branchID string, day time.Time, loc *time.Location) ([]domain.Order, error) {
	start, end := DayBounds(day, loc)
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("at ASC") }).
		Where("branch_id = ? AND created_at >= ? AND created_at < ?", branchID, start, end).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, unavailable(err, "fetch orders of %s for %s", branchID, start.Format("2006-01-02"))
	}
	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		o, err := ToDomainOrder(&models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// DayBounds 返回 loc 时区下 day 当天的 [start, end)，以 UTC 表示
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// upstreamError 保留驱动错误链，同时可以用 errors.Is 判断为 ErrUpstreamUnavailable
type upstreamError struct {
	err error
}

func (e *upstreamError) Error() string { return e.err.Error() }

func (e *upstreamError) Unwrap() error { return e.err }

func (e *upstreamError) Is(target error) bool { return target == domain.ErrUpstreamUnavailable }

func unavailable(err error, format string, args ...interface{}) error {
	return &upstreamError{err: pkgerrors.Wrapf(err, format, args...)}
}
