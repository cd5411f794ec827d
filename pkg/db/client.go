package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/slotbook-backend/pkg/config"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
)

const (
	connectAttempts = 5
	connectBackoff  = 250 * time.Millisecond
)

// Client is the shared GORM connection plus the transaction retry policy
// every reservation write runs under.
type Client struct {
	conn  *gorm.DB
	retry RetryPolicy
	logg  *logger.Logger
}

// New opens the pool and waits for Postgres to answer, so services started
// together with the database come up without a restart.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	}), gormConfig(logg, cfg.SlowQuery))
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPoolSettings(sqlDB, cfg)

	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewExponential(connectBackoff))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(sqlDB.PingContext(ctx))
	}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "db_max_open_conns", cfg.MaxOpenConns), "database connection established")
	}
	c := Wrap(conn, RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, Base: cfg.TxRetryBase})
	c.logg = logg
	return c, nil
}

// Wrap builds a Client around an already opened connection.
func Wrap(conn *gorm.DB, policy RetryPolicy) *Client {
	return &Client{conn: conn, retry: policy.normalized()}
}

// GormConfig is the silent configuration used for throwaway databases.
func GormConfig() *gorm.Config {
	return gormConfig(nil, 0)
}

// gormConfig routes slow statements and driver errors into the service
// logger. Record-not-found is an expected outcome and stays quiet.
func gormConfig(logg *logger.Logger, slow time.Duration) *gorm.Config {
	var writer gormlogger.Writer = log.New(io.Discard, "", 0)
	level := gormlogger.Silent
	if logg != nil {
		writer = gormWriter{logg: logg}
		level = gormlogger.Warn
	}
	return &gorm.Config{
		Logger: gormlogger.New(writer, gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		SkipDefaultTransaction: true,
	}
}

type gormWriter struct {
	logg *logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	ctx := w.logg.WithField(context.Background(), "component", "gorm")
	w.logg.Warn(ctx, fmt.Sprintf(format, args...))
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
