package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/recruit-pipeline-api/pkg/config"
)

const (
	pingTimeout   = 3 * time.Second
	retryBaseWait = 500 * time.Millisecond
	retryMaxWait  = 8 * time.Second
)

// NewPostgres opens a pool and waits for the server to answer, retrying with
// exponential backoff up to cfg.ConnectRetries times.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	configurePool(db, cfg)

	if err := waitForPostgres(ctx, db, cfg.ConnectRetries, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func configurePool(db *sqlx.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnLifetime)
		db.SetConnMaxIdleTime(cfg.ConnLifetime / 2)
	}
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func waitForPostgres(ctx context.Context, db pinger, retries int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := retryBaseWait
	for attempt := 0; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt >= retries {
			return fmt.Errorf("ping postgres after %d attempts: %w", attempt+1, err)
		}
		logger.Warn("postgres not ready", zap.Int("attempt", attempt+1), zap.Duration("retry_in", wait), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if wait *= 2; wait > retryMaxWait {
			wait = retryMaxWait
		}
	}
}

// DSN renders the lib/pq key/value connection string.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}
