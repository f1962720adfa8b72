package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"kavitanotes/internal/document"
	"kavitanotes/internal/kavita"
	"kavitanotes/internal/storage/runs"
	"kavitanotes/internal/types"
	"kavitanotes/internal/vault"
)

type fakeSource struct {
	annotations []types.Annotation
	chapters    types.ChapterInfoMap
	series      types.SeriesMetadataMap

	annotationsErr error
	chaptersErr    error
	seriesErr      error

	chapterCalls [][]int
	seriesCalls  [][]int
}

func (f *fakeSource) FetchAnnotations(context.Context) ([]types.Annotation, error) {
	return f.annotations, f.annotationsErr
}

func (f *fakeSource) FetchChapterInfo(_ context.Context, ids []int) (types.ChapterInfoMap, error) {
	f.chapterCalls = append(f.chapterCalls, ids)
	return f.chapters, f.chaptersErr
}

func (f *fakeSource) FetchSeriesMetadata(_ context.Context, ids []int) (types.SeriesMetadataMap, error) {
	f.seriesCalls = append(f.seriesCalls, ids)
	return f.series, f.seriesErr
}

type memStore struct {
	mu       sync.Mutex
	files    map[string]string
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string]string)}
}

func (m *memStore) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *memStore) Read(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path], nil
}

func (m *memStore) Write(_ context.Context, path, text string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = text
	return nil
}

func (m *memStore) Append(_ context.Context, path, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] += text
	return nil
}

func strPtr(s string) *string {
	return &s
}

func sampleSource() *fakeSource {
	return &fakeSource{
		annotations: []types.Annotation{
			{Id: 1, SeriesId: 1, SeriesName: strPtr("Dune"), ChapterId: 10, SelectedText: "Fear is the mind-killer."},
			{Id: 2, SeriesId: 1, SeriesName: strPtr("Dune"), ChapterId: 11, SelectedText: "Spoiler", ContainsSpoiler: true},
			{Id: 3, SeriesId: 2, ChapterId: 20, SelectedText: "Other"},
			{Id: 4, SeriesId: 1, SeriesName: strPtr("Dune"), ChapterId: 10, SelectedText: "Again"},
		},
		chapters: types.ChapterInfoMap{
			10: {BookTitle: "Dune", SortOrder: 1, Authors: []string{"Frank Herbert"}},
		},
		series: types.SeriesMetadataMap{
			2: {Writers: []types.Person{{Name: "Someone"}}},
		},
	}
}

func newTestSyncer(src Source, store vault.Store) (*Syncer, runs.Repository) {
	repo := runs.NewMemoryRepository()
	s := New(src, store, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Builder.Now = func() time.Time { return fixed }

	return s, repo
}

func TestRunWritesDocument(t *testing.T) {
	src := sampleSource()
	store := newMemStore()
	s, repo := newTestSyncer(src, store)

	summary, err := s.Run(context.Background(), Request{Path: "Kavita.md", Options: document.Options{IncludeComments: true}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// chapter 11 has no book info and falls back to the series name, which is also the title of chapter 10's book
	want := document.Stats{Annotations: 4, Rendered: 3, Series: 2, Books: 2, Chapters: 3}
	if summary.Stats != want {
		t.Errorf("Expected stats %+v, got %+v", want, summary.Stats)
	}
	if summary.RunId == "" || summary.Path != "Kavita.md" {
		t.Errorf("Unexpected summary %+v", summary)
	}

	text := store.files["Kavita.md"]
	if !strings.Contains(text, "> Fear is the mind-killer.") || strings.Contains(text, "Spoiler") {
		t.Errorf("Unexpected document %q", text)
	}

	if !reflect.DeepEqual(src.chapterCalls, [][]int{{10, 11, 20}}) {
		t.Errorf("Expected unique chapter ids in first-seen order, got %v", src.chapterCalls)
	}
	if len(src.seriesCalls) != 0 {
		t.Errorf("Expected no series metadata lookups when disabled, got %v", src.seriesCalls)
	}

	rec, err := repo.GetById(context.Background(), summary.RunId)
	if err != nil || rec == nil {
		t.Fatalf("Expected recorded run, got %v %v", rec, err)
	}
	if rec.Failed() || rec.Rendered != 3 || rec.Path != "Kavita.md" {
		t.Errorf("Unexpected run record %+v", rec)
	}
}

func TestRunWithSeriesMetadata(t *testing.T) {
	src := sampleSource()
	store := newMemStore()
	s, _ := newTestSyncer(src, store)

	_, err := s.Run(context.Background(), Request{Path: "Kavita.md", SeriesMetadata: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// chapter 11 and 20 have no book info, their series are 1 and 2
	if !reflect.DeepEqual(src.seriesCalls, [][]int{{1, 2}}) {
		t.Errorf("Expected lookups for series [1 2], got %v", src.seriesCalls)
	}
	if !strings.Contains(store.files["Kavita.md"], "### Series 2\n**Author:** Someone") {
		t.Errorf("Expected legacy writer in document, got %q", store.files["Kavita.md"])
	}
}

func TestRunEmpty(t *testing.T) {
	src := &fakeSource{}
	store := newMemStore()
	s, _ := newTestSyncer(src, store)

	summary, err := s.Run(context.Background(), Request{Path: "Kavita.md"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Annotations != 0 || len(src.chapterCalls) != 0 {
		t.Errorf("Expected no lookups for an empty listing, got %+v %v", summary, src.chapterCalls)
	}
	if !strings.Contains(store.files["Kavita.md"], document.NoAnnotations) {
		t.Error("Expected placeholder document to be written")
	}
}

func TestRunAbortsOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeSource, *memStore)
		kind   error
	}{
		{"annotations", func(f *fakeSource, _ *memStore) { f.annotationsErr = kavita.ErrConnectivity }, kavita.ErrConnectivity},
		{"chapters", func(f *fakeSource, _ *memStore) { f.chaptersErr = kavita.ErrMalformedResponse }, kavita.ErrMalformedResponse},
		{"series", func(f *fakeSource, _ *memStore) { f.seriesErr = kavita.ErrAuthorization }, kavita.ErrAuthorization},
		{"write", func(_ *fakeSource, m *memStore) { m.writeErr = vault.ErrDestinationUnwritable }, vault.ErrDestinationUnwritable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sampleSource()
			store := newMemStore()
			store.files["Kavita.md"] = "previous"
			tt.mutate(src, store)

			s, repo := newTestSyncer(src, store)

			summary, err := s.Run(context.Background(), Request{Path: "Kavita.md", SeriesMetadata: true})
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Expected %v, got %v", tt.kind, err)
			}
			if summary != nil {
				t.Errorf("Expected no summary, got %+v", summary)
			}
			if store.files["Kavita.md"] != "previous" {
				t.Error("Expected previous document to be left untouched")
			}

			recent, _ := repo.GetRecent(context.Background(), 10)
			if len(recent) != 1 || !recent[0].Failed() {
				t.Errorf("Expected a single failed run, got %+v", recent)
			}
		})
	}
}

func TestRunRequiresPath(t *testing.T) {
	s, _ := newTestSyncer(sampleSource(), newMemStore())

	if _, err := s.Run(context.Background(), Request{}); err == nil {
		t.Error("Expected error without a path")
	}
}

func TestRender(t *testing.T) {
	store := newMemStore()
	s, repo := newTestSyncer(sampleSource(), store)

	r, err := s.Render(context.Background(), Request{Options: document.Options{IncludeSpoilers: true}})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if r.Rendered != 4 || !strings.Contains(r.Text, "> Spoiler") {
		t.Errorf("Unexpected rendering %+v", r)
	}
	if len(store.files) != 0 {
		t.Error("Expected render not to persist anything")
	}
	if recent, _ := repo.GetRecent(context.Background(), 0); len(recent) != 0 {
		t.Error("Expected render not to record a run")
	}
}
