package runs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"kavitanotes/internal/logger"
)

// Open picks the run store backend from databaseUrl: postgres:// and
// postgresql:// use pgx, sqlite://<path> and file:<path> use sqlite, an empty
// url keeps runs in memory. The returned close func is never nil.
func Open(ctx context.Context, databaseUrl string, l *slog.Logger) (Repository, func() error, error) {
	noop := func() error { return nil }

	switch {
	case databaseUrl == "":
		l.Info("No DATABASE_URL configured, sync runs are kept in memory")
		return NewMemoryRepository(), noop, nil

	case strings.HasPrefix(databaseUrl, "postgres://"), strings.HasPrefix(databaseUrl, "postgresql://"):
		cfg, err := pgxpool.ParseConfig(databaseUrl)
		if err != nil {
			return nil, noop, fmt.Errorf("parsing database url: %w", err)
		}

		cfg.ConnConfig.Tracer = logger.NewPGXTracer(l)

		pg, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("creating postgres pool: %w", err)
		}

		if err := MigratePGX(ctx, pg); err != nil {
			pg.Close()
			return nil, noop, fmt.Errorf("migrating postgres: %w", err)
		}

		return NewPGXRepository(pg, l), func() error { pg.Close(); return nil }, nil

	case strings.HasPrefix(databaseUrl, "sqlite://"), strings.HasPrefix(databaseUrl, "file:"):
		path := strings.TrimPrefix(strings.TrimPrefix(databaseUrl, "sqlite://"), "file:")

		db, err := OpenSQLite(path)
		if err != nil {
			return nil, noop, err
		}

		return NewSQLiteRepository(db, l), db.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported database url scheme in %q", redactUrl(databaseUrl))
	}
}

// redactUrl keeps only the scheme, urls may carry credentials.
func redactUrl(u string) string {
	if ix := strings.Index(u, "://"); ix >= 0 {
		return u[:ix+3] + "..."
	}

	return "..."
}
