package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kavitanotes/internal/document"
	"kavitanotes/internal/kavita"
	"kavitanotes/internal/response"
	"kavitanotes/internal/storage/runs"
	"kavitanotes/internal/syncer"
	"kavitanotes/internal/vault"
)

type fakeService struct {
	err     error
	lastReq syncer.Request
}

func (f *fakeService) Render(_ context.Context, req syncer.Request) (*syncer.Rendering, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}

	text := "---\ntitle: Kavita Annotations\n---\n\n# Kavita Annotations\n\n## Dune\n\n> Fear is the mind-killer.\n"
	return &syncer.Rendering{Text: text, Stats: document.Stats{Annotations: 1, Rendered: 1}}, nil
}

func (f *fakeService) Run(_ context.Context, req syncer.Request) (*syncer.Summary, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}

	return &syncer.Summary{RunId: "run-1", Path: req.Path, Stats: document.Stats{Annotations: 2, Rendered: 2}}, nil
}

func newTestServer(t *testing.T, svc *fakeService) (*httptest.Server, runs.Repository) {
	t.Helper()

	repo := runs.NewMemoryRepository()
	defaults := syncer.Request{
		Path:    "Vault/Kavita Annotations.md",
		Options: document.Options{IncludeComments: true, IncludeTags: true},
	}

	srv := httptest.NewServer(Handler(svc, repo, defaults, &response.Responder{Classify: Classify}))
	t.Cleanup(srv.Close)

	return srv, repo
}

func TestGetDocumentMarkdown(t *testing.T) {
	svc := &fakeService{}
	srv, _ := newTestServer(t, svc)

	res, err := http.Get(srv.URL + "/document?spoilers=true&tags=off&tag_prefix=genre/")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Expected markdown, got %s", ct)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "kavita-annotations.md") {
		t.Errorf("Expected slugged file name, got %s", cd)
	}

	opts := svc.lastReq.Options
	if !opts.IncludeComments || !opts.IncludeSpoilers || opts.IncludeTags || opts.TagPrefix != "genre/" {
		t.Errorf("Expected query overrides on top of defaults, got %+v", opts)
	}
}

func TestGetDocumentHtml(t *testing.T) {
	srv, _ := newTestServer(t, &fakeService{})

	res, err := http.Get(srv.URL + "/document?format=html")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)

	if !strings.Contains(body, "<h2>Dune</h2>") || !strings.Contains(body, "<blockquote>") {
		t.Errorf("Expected rendered html, got %s", body)
	}
	if strings.Contains(body, "title: Kavita") {
		t.Errorf("Expected frontmatter to be stripped, got %s", body)
	}
}

func TestGetDocumentBadRequest(t *testing.T) {
	srv, _ := newTestServer(t, &fakeService{})

	for _, query := range []string{"?spoilers=maybe", "?format=pdf"} {
		res, err := http.Get(srv.URL + "/document" + query)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()

		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", query, res.StatusCode)
		}
	}
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("fetching annotations: %w", kavita.ErrConnectivity), http.StatusBadGateway},
		{fmt.Errorf("authenticating: %w", kavita.ErrAuthorization), http.StatusBadGateway},
		{kavita.ErrMalformedResponse, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("writing document: %w", vault.ErrDestinationUnwritable), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeService{err: tt.err})

			res, err := http.Post(srv.URL+"/sync", "application/json", nil)
			if err != nil {
				t.Fatal(err)
			}
			res.Body.Close()

			if res.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, res.StatusCode)
			}
		})
	}
}

func TestPostSync(t *testing.T) {
	svc := &fakeService{}
	srv, _ := newTestServer(t, svc)

	res, err := http.Post(srv.URL+"/sync?series_metadata=1", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var summary syncer.Summary
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}

	if summary.RunId != "run-1" || summary.Rendered != 2 || summary.Path != "Vault/Kavita Annotations.md" {
		t.Errorf("Unexpected summary %+v", summary)
	}
	if !svc.lastReq.SeriesMetadata {
		t.Error("Expected series_metadata override")
	}
}

func TestRuns(t *testing.T) {
	srv, repo := newTestServer(t, &fakeService{})

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for ix, id := range []string{"a", "b", "c"} {
		_ = repo.Save(context.Background(), &runs.Record{Id: id, StartTime: base.Add(time.Duration(ix) * time.Minute)})
	}

	res, err := http.Get(srv.URL + "/runs?limit=2")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var body struct {
		Runs []runs.Record `json:"runs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode runs: %v", err)
	}

	if len(body.Runs) != 2 || body.Runs[0].Id != "c" || body.Runs[1].Id != "b" {
		t.Errorf("Expected [c b], got %+v", body.Runs)
	}

	for query, want := range map[string]int{"?limit=0": 400, "?limit=100000": 400} {
		res, err := http.Get(srv.URL + "/runs" + query)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()

		if res.StatusCode != want {
			t.Errorf("Expected %d for %s, got %d", want, query, res.StatusCode)
		}
	}
}

func TestRunById(t *testing.T) {
	srv, repo := newTestServer(t, &fakeService{})
	_ = repo.Save(context.Background(), &runs.Record{Id: "a", Error: "kavita unreachable"})

	res, err := http.Get(srv.URL + "/runs/a")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var rec runs.Record
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Id != "a" || !rec.Failed() {
		t.Errorf("Unexpected record %+v", rec)
	}

	missing, err := http.Get(srv.URL + "/runs/zzz")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()

	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", missing.StatusCode)
	}
}

func TestDownloadName(t *testing.T) {
	tests := map[string]string{
		"Vault/Kavita Annotations.md": "kavita-annotations.md",
		"/notes/Reading Log.markdown": "reading-log.md",
		"":                            "kavita-annotations.md",
	}

	for in, want := range tests {
		if got := downloadName(in); got != want {
			t.Errorf("downloadName(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestStripFrontmatter(t *testing.T) {
	if got := stripFrontmatter("---\na: b\n---\n# T"); got != "# T" {
		t.Errorf("Expected frontmatter removed, got %q", got)
	}
	if got := stripFrontmatter("# T\n---\n"); got != "# T\n---\n" {
		t.Errorf("Expected document without frontmatter untouched, got %q", got)
	}
}
