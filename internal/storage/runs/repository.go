package runs

import (
	"context"
	"time"
)

// Record describes one sync attempt, successful or not.
type Record struct {
	Id          string    `json:"id" db:"id"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	FinishTime  time.Time `json:"finish_time" db:"finish_time"`
	Path        string    `json:"path" db:"path"`
	Annotations int       `json:"annotations" db:"annotations"`
	Rendered    int       `json:"rendered" db:"rendered"`
	Series      int       `json:"series" db:"series"`
	Books       int       `json:"books" db:"books"`
	Chapters    int       `json:"chapters" db:"chapters"`
	// Error is empty for successful runs
	Error string `json:"error,omitempty" db:"error"`
}

func (r *Record) Failed() bool {
	return r.Error != ""
}

type Repository interface {
	Save(ctx context.Context, r *Record) error

	// GetById returns nil without error when there is no such run.
	GetById(ctx context.Context, id string) (*Record, error)
	// GetRecent returns runs newest first.
	GetRecent(ctx context.Context, limit uint) ([]*Record, error)
}

const table = "sync_run"
