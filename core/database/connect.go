package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/moexbot/core/logger"
)

const (
	component      = "db"
	connectTimeout = 5 * time.Second
	waitStep       = 2 * time.Second
)

func (c Config) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("driver", "postgres"),
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}

// Connect opens a pooled connection and pings it.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		logger.Error(ctx, component, "db.connect", append(cfg.attrs(),
			slog.String("status", "fail"),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}

	logger.Info(ctx, component, "db.connect", append(cfg.attrs(),
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)...)
	return db, nil
}

// WaitForPostgres pings the server every couple of seconds until it answers,
// cfg.WaitTimeout elapses or ctx is done.
func WaitForPostgres(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.WaitTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		err := ping(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, component, "db.wait", append(cfg.attrs(),
					slog.String("status", "ok"),
					slog.Int("attempts", attempt),
				)...)
			}
			return nil
		}
		logger.Debug(ctx, component, "db.wait", append(cfg.attrs(),
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.String("err", err.Error()),
		)...)

		select {
		case <-ctx.Done():
			return fmt.Errorf("db wait after %d attempts: %w", attempt, err)
		case <-time.After(waitStep):
		}
	}
}

func ping(ctx context.Context, cfg Config) error {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}
