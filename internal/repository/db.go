// Package repository persists extraction runs over postgres (pgx) or sqlite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ErrNoDSN is returned by Open when no database is configured.
var ErrNoDSN = errors.New("database dsn is empty")

// DB is an ent SQL driver plus the pgx pool behind it, when postgres is used.
type DB struct {
	drv     *entsql.Driver
	pool    *pgxpool.Pool
	dialect string
	logger  *slog.Logger
}

// Open connects to the database named by cfg.DSN. postgres:// and postgresql:// DSNs use a
// pgx pool; sqlite://path, file: and :memory: use the pure Go sqlite driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	logger.Info("connecting to database", "dsn", redact(cfg.DSN))

	if isPostgres(cfg.DSN) {
		db, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return nil, err
		}
		return db, nil
	}

	path := strings.TrimPrefix(cfg.DSN, "sqlite://")
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	// one connection: :memory: databases are per connection and sqlite serializes writers
	sqldb.SetMaxOpenConns(1)
	pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := sqldb.PingContext(pctx); err != nil {
		_ = sqldb.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", dialect.SQLite)
	return &DB{drv: entsql.OpenDB(dialect.SQLite, sqldb), dialect: dialect.SQLite, logger: logger}, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "docminer"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		return nil, err
	}

	// Wrap pool as *sql.DB for ent
	sqldb := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "dialect", dialect.Postgres)
	return &DB{drv: entsql.OpenDB(dialect.Postgres, sqldb), pool: pool, dialect: dialect.Postgres, logger: logger}, nil
}

// Dialect is the ent dialect name of the connection.
func (d *DB) Dialect() string { return d.dialect }

// Close closes the database connections gracefully.
func (d *DB) Close() {
	if d == nil {
		return
	}
	d.logger.Info("closing database connections")
	if err := d.drv.Close(); err != nil {
		d.logger.Error("failed to close database driver", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	d.logger.Debug("pinging database")
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.drv.DB().PingContext(ctx)
}

func isPostgres(dsn string) bool {
	s := strings.ToLower(dsn)
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// redact hides the password of a URL style DSN.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":***"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}
