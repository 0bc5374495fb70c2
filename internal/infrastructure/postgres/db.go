package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultConnectTimeout = 5 * time.Second

// PoolConfig describes the ledger's PostgreSQL pool.
type PoolConfig struct {
	DatabaseURL string
	MaxConns    int
	MinConns    int
	// ConnectTimeout bounds the initial ping. Zero means 5s.
	ConnectTimeout time.Duration
	// StatementTimeout caps every statement server side. Zero keeps the
	// server default.
	StatementTimeout time.Duration
	ApplicationName  string
}

// NewPool creates a pool with default timeouts.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int) (*pgxpool.Pool, error) {
	return NewPoolWithConfig(ctx, PoolConfig{
		DatabaseURL: databaseURL,
		MaxConns:    maxConns,
		MinConns:    minConns,
	})
}

// NewPoolWithConfig creates a pool from cfg and verifies it can connect.
func NewPoolWithConfig(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pgCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// poolConfig pins every session to UTC; ledger timestamps are converted to
// the business timezone in Go, never by the server.
func poolConfig(cfg PoolConfig) (*pgxpool.Config, error) {
	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.MinConns)
	}

	params := pgCfg.ConnConfig.RuntimeParams
	params["timezone"] = "UTC"
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return pgCfg, nil
}
