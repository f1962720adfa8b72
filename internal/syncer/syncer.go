package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"kavitanotes/internal/document"
	"kavitanotes/internal/logger"
	"kavitanotes/internal/storage/runs"
	"kavitanotes/internal/types"
	"kavitanotes/internal/vault"
)

// Source is where annotations and their metadata come from.
type Source interface {
	FetchAnnotations(ctx context.Context) ([]types.Annotation, error)
	FetchChapterInfo(ctx context.Context, chapterIds []int) (types.ChapterInfoMap, error)
	FetchSeriesMetadata(ctx context.Context, seriesIds []int) (types.SeriesMetadataMap, error)
}

type Request struct {
	Path    string
	Options document.Options
	// SeriesMetadata also queries the legacy per-series metadata for
	// chapters without book info.
	SeriesMetadata bool
}

type Rendering struct {
	Text string
	document.Stats
}

type Summary struct {
	RunId string `json:"run_id"`
	Path  string `json:"path"`
	document.Stats
	Duration time.Duration `json:"duration"`
}

type Syncer struct {
	Source  Source
	Store   vault.Store
	Runs    runs.Repository
	Builder *document.Builder
	Logger  *slog.Logger
}

func New(source Source, store vault.Store, runRepo runs.Repository, l *slog.Logger) *Syncer {
	return &Syncer{
		Source:  source,
		Store:   store,
		Runs:    runRepo,
		Builder: &document.Builder{Now: time.Now},
		Logger:  l,
	}
}

func (s *Syncer) now() time.Time {
	if s.Builder != nil && s.Builder.Now != nil {
		return s.Builder.Now()
	}

	return time.Now()
}

// Render fetches everything and builds the document without persisting it.
func (s *Syncer) Render(ctx context.Context, req Request) (*Rendering, error) {
	annotations, err := s.Source.FetchAnnotations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching annotations: %w", err)
	}

	s.Logger.InfoContext(ctx, "Fetched "+strconv.Itoa(len(annotations))+" annotations")

	var chapters types.ChapterInfoMap
	var series types.SeriesMetadataMap

	if len(annotations) > 0 {
		chapters, err = s.Source.FetchChapterInfo(ctx, chapterIds(annotations))
		if err != nil {
			return nil, fmt.Errorf("fetching chapter info: %w", err)
		}

		if req.SeriesMetadata {
			if missing := unmappedSeriesIds(annotations, chapters); len(missing) > 0 {
				series, err = s.Source.FetchSeriesMetadata(ctx, missing)
				if err != nil {
					return nil, fmt.Errorf("fetching series metadata: %w", err)
				}
			}
		}
	}

	builder := s.Builder
	if builder == nil {
		builder = &document.Builder{Now: time.Now}
	}

	text, stats := builder.BuildWithStats(annotations, req.Options, series, chapters)
	return &Rendering{Text: text, Stats: stats}, nil
}

// Run performs a full sync: fetch, build and overwrite the document at
// req.Path. Any failure aborts before the document is touched. Every attempt
// is recorded in the run store.
func (s *Syncer) Run(ctx context.Context, req Request) (*Summary, error) {
	if req.Path == "" {
		return nil, errors.New("no output path")
	}

	rec := &runs.Record{
		Id:        uuid.NewString(),
		StartTime: s.now(),
		Path:      req.Path,
	}
	ctx = logger.WithRunId(ctx, rec.Id)

	s.Logger.InfoContext(ctx, "Starting sync into "+req.Path)

	summary, err := s.run(ctx, req, rec)

	rec.FinishTime = s.now()
	if err != nil {
		rec.Error = err.Error()
		s.Logger.ErrorContext(ctx, "Sync failed: "+err.Error())
	}

	// the run is recorded even when the caller has given up on it
	if serr := s.Runs.Save(context.WithoutCancel(ctx), rec); serr != nil {
		s.Logger.ErrorContext(ctx, "Failed to record sync run: "+serr.Error())
		if err != nil {
			err = multierr.Append(err, fmt.Errorf("recording run: %w", serr))
		}
	}

	if err != nil {
		return nil, err
	}

	summary.Duration = rec.FinishTime.Sub(rec.StartTime)
	s.Logger.InfoContext(ctx, "Synced "+strconv.Itoa(summary.Rendered)+" annotations into "+req.Path)

	return summary, nil
}

func (s *Syncer) run(ctx context.Context, req Request, rec *runs.Record) (*Summary, error) {
	r, err := s.Render(ctx, req)
	if err != nil {
		return nil, err
	}

	rec.Annotations = r.Annotations
	rec.Rendered = r.Rendered
	rec.Series = r.Series
	rec.Books = r.Books
	rec.Chapters = r.Chapters

	if err := s.Store.Write(ctx, req.Path, r.Text); err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}

	return &Summary{RunId: rec.Id, Path: req.Path, Stats: r.Stats}, nil
}

func chapterIds(annotations []types.Annotation) []int {
	seen := make(map[int]struct{}, len(annotations))
	var ret []int

	for ix := range annotations {
		id := annotations[ix].ChapterId
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ret = append(ret, id)
	}

	return ret
}

// unmappedSeriesIds lists series having at least one chapter without book info,
// only those can gain anything from the legacy metadata.
func unmappedSeriesIds(annotations []types.Annotation, chapters types.ChapterInfoMap) []int {
	seen := make(map[int]struct{})
	var ret []int

	for ix := range annotations {
		a := &annotations[ix]
		if _, ok := chapters[a.ChapterId]; ok {
			continue
		}
		if _, ok := seen[a.SeriesId]; ok {
			continue
		}
		seen[a.SeriesId] = struct{}{}
		ret = append(ret, a.SeriesId)
	}

	return ret
}
