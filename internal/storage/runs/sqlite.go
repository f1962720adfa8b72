package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/georgysavva/scany/v2/sqlscan"
	_ "github.com/mattn/go-sqlite3"
)

// Times are kept as unix milliseconds, sqlite has no native timestamp type.
const sqliteSchema = `CREATE TABLE IF NOT EXISTS sync_run (
	id          TEXT PRIMARY KEY,
	start_time  INTEGER NOT NULL,
	finish_time INTEGER NOT NULL,
	path        TEXT NOT NULL,
	annotations INTEGER NOT NULL DEFAULT 0,
	rendered    INTEGER NOT NULL DEFAULT 0,
	series      INTEGER NOT NULL DEFAULT 0,
	books       INTEGER NOT NULL DEFAULT 0,
	chapters    INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sync_run_start_time_idx ON sync_run (start_time DESC);`

// OpenSQLite opens (creating if needed) the database file and applies the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}

func NewSQLiteRepository(db *sql.DB, l *slog.Logger) Repository {
	return &sqliteRepo{db: db, g: goqu.Dialect("sqlite3"), l: l}
}

type sqliteRepo struct {
	db *sql.DB
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type sqliteRecord struct {
	Id          string `db:"id"`
	StartTime   int64  `db:"start_time"`
	FinishTime  int64  `db:"finish_time"`
	Path        string `db:"path"`
	Annotations int    `db:"annotations"`
	Rendered    int    `db:"rendered"`
	Series      int    `db:"series"`
	Books       int    `db:"books"`
	Chapters    int    `db:"chapters"`
	Error       string `db:"error"`
}

func (s *sqliteRecord) intoCommon() *Record {
	return &Record{
		Id:          s.Id,
		StartTime:   time.UnixMilli(s.StartTime).UTC(),
		FinishTime:  time.UnixMilli(s.FinishTime).UTC(),
		Path:        s.Path,
		Annotations: s.Annotations,
		Rendered:    s.Rendered,
		Series:      s.Series,
		Books:       s.Books,
		Chapters:    s.Chapters,
		Error:       s.Error,
	}
}

func (p *sqliteRepo) Save(ctx context.Context, r *Record) error {
	query, params, err := p.g.Insert(table).
		Rows(goqu.Record{
			"id":          r.Id,
			"start_time":  r.StartTime.UnixMilli(),
			"finish_time": r.FinishTime.UnixMilli(),
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

	_, err = p.db.ExecContext(ctx, query, params...)
	return err
}

func (p *sqliteRepo) GetById(ctx context.Context, id string) (*Record, error) {
	query, params, err := p.g.From(table).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row sqliteRecord

	err = sqlscan.Get(ctx, p.db, &row, query, params...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *sqliteRepo) GetRecent(ctx context.Context, limit uint) ([]*Record, error) {
	query, params, err := p.g.From(table).
		Order(goqu.C("start_time").Desc()).
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []sqliteRecord

	err = sqlscan.Select(ctx, p.db, &rows, query, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*Record, 0, len(rows))
	for ix := range rows {
		ret = append(ret, rows[ix].intoCommon())
	}

	return ret, nil
}
