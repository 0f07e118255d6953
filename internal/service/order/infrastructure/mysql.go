// internal/service/order/infrastructure/mysql.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"orderdesk/internal/pkg/bootstrap"
	"orderdesk/internal/pkg/logger"

	mysqldriver "github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// BuildDSN 生成 MySQL DSN，时间统一按 UTC 读写
func BuildDSN(cfg bootstrap.MySQLConfig) string {
	c := mysqldriver.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = cfg.Addr
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Loc = time.UTC
	c.Timeout = 5 * time.Second
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// NewMySQLDB 打开连接池并迁移表结构
func NewMySQLDB(cfg bootstrap.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(BuildDSN(cfg)), &gorm.Config{
		Logger:  zerologGormLogger{level: gormlogger.Warn},
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open mysql %s/%s", cfg.Addr, cfg.Database)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "mysql pool")
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&OrderModel{}, &StatusHistoryModel{}); err != nil {
		return nil, pkgerrors.Wrap(err, "migrate order tables")
	}
	return db, nil
}

// zerologGormLogger 把 GORM 的日志接到 zerolog 上，带上 trace_id
type zerologGormLogger struct {
	level gormlogger.LogLevel
}

func (l zerologGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return zerologGormLogger{level: level}
}

func (l zerologGormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.Ctx(ctx).Info().Msgf(msg, args...)
	}
}

func (l zerologGormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.Ctx(ctx).Warn().Msgf(msg, args...)
	}
}

func (l zerologGormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.Ctx(ctx).Error().Msgf(msg, args...)
	}
}

func (l zerologGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		logger.Ctx(ctx).Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query failed")
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		logger.Ctx(ctx).Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm slow query")
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		logger.Ctx(ctx).Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query")
	}
}
