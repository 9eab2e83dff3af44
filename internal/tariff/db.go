package tariff

import (
	"context"
	"database/sql"
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
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the tariff store. postgres:// DSNs go through a pgx pool wrapped for ent;
// anything else is a SQLite file (a local tariff snapshot), migrated on open.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if isPostgres(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("tariff.db.connect", "driver", "pgx")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("tariff.db.connect_failed", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "glosa"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("tariff.db.connect_failed", "error", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	s := NewStore(entsql.OpenDB(dialect.Postgres, db), logger)
	s.close = pool.Close
	logger.Info("tariff.db.connected", "driver", "pgx")
	return s, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	dsn := strings.TrimPrefix(cfg.DSN, "sqlite://")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := NewStore(entsql.OpenDB(dialect.SQLite, db), logger)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("tariff.db.connected", "driver", "sqlite", "path", dsn)
	return s, nil
}
