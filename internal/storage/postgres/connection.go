package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
)

// DB manages the PostgreSQL connection pool
type DB struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
	config *common.PostgresConfig
}

// NewDB opens a pool against config.DSN and applies migrations
func NewDB(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	d := &DB{
		pool:   pool,
		logger: logger,
		config: config,
	}

	if err := d.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Int("max_conns", int(poolConfig.MaxConns)).
		Msg("PostgreSQL pool initialized")
	return d, nil
}

// Pool returns the underlying pgx pool
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// Close releases every pooled connection
func (d *DB) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}
