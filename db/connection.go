// Package db is the data-access handle for the pharmacy database.
//
// Design decisions:
//   - Uses pgxpool for connection pooling (safe for concurrent access).
//     Pool size and overflow map to pgxpool MinConns and MaxConns.
//   - Statements run through a database/sql view of the same pool
//     (pgx stdlib), so every operation can be exercised against sqlmock.
//   - The handle is constructed explicitly by the hosting process and
//     passed to whoever needs it; there is no package-level connection.
//   - SSH tunnel integration is handled transparently: if SSH is enabled,
//     we first establish the tunnel, then connect pgx to the local endpoint.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DachengChen/shelfcare/config"
	"github.com/DachengChen/shelfcare/ssh"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// DB wraps a pgx connection pool and optional SSH tunnel.
type DB struct {
	Pool   *pgxpool.Pool
	SQL    *sql.DB
	Tunnel *ssh.Tunnel

	logger zerolog.Logger
	now    func() time.Time
}

// New wraps an existing *sql.DB. Used by tests and by callers that manage
// their own pool.
func New(sqlDB *sql.DB, logger zerolog.Logger) *DB {
	return &DB{
		SQL:    sqlDB,
		logger: logger.With().Str("component", "db").Logger(),
		now:    time.Now,
	}
}

// Connect establishes a PostgreSQL connection, optionally through an SSH tunnel.
func Connect(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*DB, error) {
	d := New(nil, logger)

	if cfg.SSH.Enabled {
		tunnel, err := ssh.NewTunnel(cfg.SSH, cfg.Host, cfg.Port, logger)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		localAddr, err := tunnel.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel start: %w", err)
		}
		d.Tunnel = tunnel

		cfg.Host = localAddr.Host
		cfg.Port = localAddr.Port
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("pgx config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns())
	if cfg.PoolSize > 0 {
		poolCfg.MinConns = int32(cfg.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("pgx connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		d.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}

	d.Pool = pool
	d.SQL = stdlib.OpenDBFromPool(pool)
	d.logger.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("connected")
	return d, nil
}

// Close shuts down the pool and SSH tunnel.
func (d *DB) Close() {
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Tunnel != nil {
		d.Tunnel.Stop()
	}
}

// SetClock overrides the clock used for date windows.
func (d *DB) SetClock(now func() time.Time) { d.now = now }
