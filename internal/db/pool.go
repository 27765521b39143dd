package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pool is an alias for pgxpool.Pool
type Pool = pgxpool.Pool

// NewPool opens the Postgres pool backing the device, meter read and
// certificate stores, tied to the fx lifecycle. The ping happens on start
// so a bad DATABASE_URL fails the boot instead of the first submission.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, databaseURL string) (*pgxpool.Pool, error) {
	logger.Info("initializing database connection pool")

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				logger.Error("database ping failed", zap.Error(err), zap.String("url", maskPassword(databaseURL)))
				return fmt.Errorf("cannot reach database (is it running, and is DATABASE_URL correct?): %w", err)
			}
			logger.Info("database connection established")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("database connection closed")
			return nil
		},
	})

	return pool, nil
}

// maskPassword hides the credential part of a database URL before it is
// logged.
func maskPassword(url string) string {
	if url == "" {
		return "<empty>"
	}
	at := strings.LastIndexByte(url, '@')
	if at < 0 {
		return url
	}
	colon := strings.LastIndexByte(url[:at], ':')
	if colon < 0 || colon+1 < len(url) && url[colon+1] == '/' {
		return url
	}
	return url[:colon+1] + "***" + url[at:]
}
