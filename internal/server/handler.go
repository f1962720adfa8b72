package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"

	"kavitanotes/internal/document"
	"kavitanotes/internal/kavita"
	"kavitanotes/internal/response"
	"kavitanotes/internal/storage/runs"
	"kavitanotes/internal/syncer"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

type Service interface {
	Render(ctx context.Context, req syncer.Request) (*syncer.Rendering, error)
	Run(ctx context.Context, req syncer.Request) (*syncer.Summary, error)
}

// Handler serves the document preview, on demand syncs and the sync history.
// defaults holds the configured output path and format options; query
// parameters override the format options per request.
func Handler(svc Service, rr runs.Repository, defaults syncer.Request, resp *response.Responder) http.Handler {
	r := chi.NewRouter()

	r.Get("/document", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		req, err := requestFromQuery(defaults, q)
		if err != nil {
			resp.RespondAndLogCustom(w, r.Context(), err, slog.LevelInfo, http.StatusBadRequest)
			return
		}

		format := strings.ToLower(q.Get("format"))
		if format != "" && format != "markdown" && format != "html" {
			resp.RespondAndLogCustom(w, r.Context(), fmt.Errorf("format must be markdown or html, got %q", format), slog.LevelInfo, http.StatusBadRequest)
			return
		}

		rendering, err := svc.Render(r.Context(), req)
		if err != nil {
			resp.RespondAndLogError(w, r.Context(), err)
			return
		}

		if format == "html" {
			page, err := renderHtml(rendering.Text)
			if err != nil {
				resp.RespondAndLogError(w, r.Context(), err)
				return
			}

			resp.SendDocument(w, "text/html; charset=utf-8", "", page)
			return
		}

		resp.SendDocument(w, "text/markdown; charset=utf-8", downloadName(defaults.Path), []byte(rendering.Text))
	})

	r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
		req, err := requestFromQuery(defaults, r.URL.Query())
		if err != nil {
			resp.RespondAndLogCustom(w, r.Context(), err, slog.LevelInfo, http.StatusBadRequest)
			return
		}

		summary, err := svc.Run(r.Context(), req)
		if err != nil {
			resp.RespondAndLogError(w, r.Context(), err)
			return
		}

		resp.SendJson(w, r.Context(), summary)
	})

	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		limit := getIntOrDefault("limit", r.URL.Query(), defaultRunsLimit)
		if limit <= 0 || limit > maxRunsLimit {
			resp.RespondAndLogCustom(w, r.Context(), fmt.Errorf("limit must be between 1 and %d", maxRunsLimit), slog.LevelInfo, http.StatusBadRequest)
			return
		}

		rows, err := rr.GetRecent(r.Context(), uint(limit))
		if err != nil {
			resp.RespondAndLogError(w, r.Context(), err)
			return
		}

		if rows == nil {
			rows = make([]*runs.Record, 0)
		}

		resp.SendJson(w, r.Context(), struct {
			Runs []*runs.Record `json:"runs"`
		}{Runs: rows})
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		row, err := rr.GetById(r.Context(), id)
		if err != nil {
			resp.RespondAndLogError(w, r.Context(), err)
			return
		}

		if row == nil {
			resp.RespondAndLogCustom(w, r.Context(), errors.New("no sync run "+id), slog.LevelDebug, http.StatusNotFound)
			return
		}

		resp.SendJson(w, r.Context(), row)
	})

	return r
}

// Classify maps sync failures to response statuses: Kavita being down or
// misbehaving is a bad gateway, everything else is ours.
func Classify(err error) (int, slog.Level) {
	switch {
	case errors.Is(err, kavita.ErrConnectivity),
		errors.Is(err, kavita.ErrAuthorization),
		errors.Is(err, kavita.ErrMalformedResponse):
		return http.StatusBadGateway, slog.LevelWarn
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, slog.LevelWarn
	default:
		return http.StatusInternalServerError, slog.LevelError
	}
}

func requestFromQuery(defaults syncer.Request, q url.Values) (syncer.Request, error) {
	req := defaults

	flags := []struct {
		key string
		dst *bool
	}{
		{"comments", &req.Options.IncludeComments},
		{"spoilers", &req.Options.IncludeSpoilers},
		{"tags", &req.Options.IncludeTags},
		{"links", &req.Options.IncludeWikilinks},
		{"series_metadata", &req.SeriesMetadata},
	}

	for _, f := range flags {
		if err := getBool(f.key, q, f.dst); err != nil {
			return req, err
		}
	}

	if prefix, ok := q["tag_prefix"]; ok && len(prefix) > 0 {
		req.Options.TagPrefix = prefix[0]
	}

	return req, nil
}

func renderHtml(markdown string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>" + document.Title + "</title></head><body>\n")
	if err := goldmark.Convert([]byte(stripFrontmatter(markdown)), &buf); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}
	buf.WriteString("</body></html>\n")

	return buf.Bytes(), nil
}

// stripFrontmatter drops the leading yaml block, markdown renderers would
// otherwise show it as a rule followed by a paragraph.
func stripFrontmatter(markdown string) string {
	if !strings.HasPrefix(markdown, "---\n") {
		return markdown
	}

	end := strings.Index(markdown[4:], "\n---\n")
	if end < 0 {
		return markdown
	}

	return markdown[4+end+len("\n---\n"):]
}

func downloadName(path string) string {
	name := slug.Make(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if name == "" || name == "." {
		name = slug.Make(document.Title)
	}

	return name + ".md"
}

func getIntOrDefault(key string, q url.Values, default_ int) int {
	if ls := q.Get(key); ls != "" {
		limit, err := strconv.Atoi(ls)
		if err == nil {
			return limit
		}
	}

	return default_
}

func getBool(key string, q url.Values, dst *bool) error {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}

	switch strings.ToLower(raw) {
	case "yes", "on":
		*dst = true
		return nil
	case "no", "off":
		*dst = false
		return nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}

	*dst = val
	return nil
}
