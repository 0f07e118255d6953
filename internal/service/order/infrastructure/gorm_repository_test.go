package infrastructure

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"orderdesk/internal/service/order/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var repoDay = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

func newMockRepository(t *testing.T) (*GormOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	return NewGormOrderRepository(db), mock
}

func orderRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "branch_id", "type", "lines_json", "totals_json", "grand_total", "status", "created_at"})
	for i, id := range ids {
		rows.AddRow(id, "b1", "takeaway", `[{"productId":"a","quantity":1,"unitBasePrice":"12.00"}]`,
			`{"grandTotal":"12.00"}`, "12.00", "confirmed", repoDay.Add(time.Duration(10-i)*time.Hour))
	}
	return rows
}

func historyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "order_id", "from_status", "to_status", "actor", "note", "at"}).
		AddRow("h1", "o1", "pending", "confirmed", "cashier", "", repoDay.Add(11*time.Hour))
}

func transitionEntry() domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{ID: "h1", From: domain.StatusPending, To: domain.StatusConfirmed, Actor: "cashier", At: repoDay.Add(11 * time.Hour)}
}

// timeArg 按时间点比较，不比较时区指针
type timeArg time.Time

func (a timeArg) Match(v driver.Value) bool {
	got, ok := v.(time.Time)
	return ok && got.Equal(time.Time(a))
}

func TestGormOrderRepository_UpdateStatusAppendsHistory(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET `status`=\\?,`updated_at`=\\? WHERE .*id = \\? AND status = \\?").
		WithArgs("confirmed", sqlmock.AnyArg(), "o1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `order_status_history`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?").
		WillReturnRows(orderRows("o1"))
	mock.ExpectQuery("SELECT \\* FROM `order_status_history` WHERE `order_status_history`.`order_id` = \\?").
		WithArgs("o1").
		WillReturnRows(historyRows())

	o, err := repo.UpdateStatus(context.Background(), "o1", transitionEntry())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, o.Status)
	require.Len(t, o.History, 1)
	assert.Equal(t, domain.StatusConfirmed, o.History[0].To)
	assert.Equal(t, "cashier", o.History[0].Actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_UpdateStatusLostRace(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT `id`,`status` FROM `orders` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("o1", "cancelled"))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "o1", transitionEntry())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusCancelled, te.From)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_UpdateStatusMissingOrder(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT `id`,`status` FROM `orders` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "ghost", transitionEntry())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_UpdateStatusDriverFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET").
		WillReturnError(errors.New("driver: bad connection"))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "o1", transitionEntry())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_FindByIDMissing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?").
		WillReturnRows(orderRows())

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_FetchForDateUsesBranchDayBounds(t *testing.T) {
	repo, mock := newMockRepository(t)
	loc := time.FixedZone("UTC+8", 8*3600)
	start := time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC)
	end := time.Date(2026, 10, 17, 16, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE branch_id = \\? AND created_at >= \\? AND created_at < \\? ORDER BY created_at DESC").
		WithArgs("b1", timeArg(start), timeArg(end)).
		WillReturnRows(orderRows("o2", "o1"))
	mock.ExpectQuery("SELECT \\* FROM `order_status_history`").
		WillReturnRows(historyRows())

	orders, err := repo.FetchForDate(context.Background(), "b1", time.Date(2026, 10, 17, 0, 0, 0, 0, loc), loc)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID)
	assert.Equal(t, "o1", orders[1].ID)
	assert.Empty(t, orders[0].History)
	assert.Len(t, orders[1].History, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
