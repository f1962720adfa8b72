package runs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgxSchema = `CREATE TABLE IF NOT EXISTS sync_run (
	id          text PRIMARY KEY,
	start_time  timestamptz NOT NULL,
	finish_time timestamptz NOT NULL,
	path        text NOT NULL,
	annotations integer NOT NULL DEFAULT 0,
	rendered    integer NOT NULL DEFAULT 0,
	series      integer NOT NULL DEFAULT 0,
	books       integer NOT NULL DEFAULT 0,
	chapters    integer NOT NULL DEFAULT 0,
	error       text NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sync_run_start_time_idx ON sync_run (start_time DESC);`

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

// MigratePGX creates the run table when it does not exist yet.
func MigratePGX(ctx context.Context, pg *pgxpool.Pool) error {
	_, err := pg.Exec(ctx, pgxSchema)
	return err
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

func (p *pgxRepo) Save(ctx context.Context, r *Record) error {
	sql, params, err := p.g.Insert(table).
		Rows(goqu.Record{
			"id":          r.Id,
			"start_time":  r.StartTime.UTC(),
			"finish_time": r.FinishTime.UTC(),
			"path":        r.Path,
			"annotations": r.Annotations,
			"rendered":    r.Rendered,
			"series":      r.Series,
			"books":       r.Books,
			"chapters":    r.Chapters,
			"error":       r.Error,
		}).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) GetById(ctx context.Context, id string) (*Record, error) {
	sql, params, err := p.g.From(table).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row Record

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return &row, nil
}

func (p *pgxRepo) GetRecent(ctx context.Context, limit uint) ([]*Record, error) {
	sql, params, err := p.g.From(table).
		Order(goqu.C("start_time").Desc()).
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []*Record

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}
