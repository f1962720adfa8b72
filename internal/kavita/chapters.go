package kavita

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"kavitanotes/internal/types"
)

const chapterPath = "/api/Chapter"

type chapterDto struct {
	Id        int            `json:"id"`
	Title     string         `json:"title"`
	TitleName string         `json:"titleName"`
	SortOrder float64        `json:"sortOrder"`
	Writers   []types.Person `json:"writers"`
	Genres    []types.Genre  `json:"genres"`
}

// FetchChapterInfo looks up the book behind every chapter id. Chapters Kavita
// does not know, or knows without any title, are left out of the map; only
// transport and decoding failures are errors.
func (c *Client) FetchChapterInfo(ctx context.Context, chapterIds []int) (types.ChapterInfoMap, error) {
	ret := make(types.ChapterInfoMap, len(chapterIds))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, id := range unique(chapterIds) {
		g.Go(func() error {
			info, ok, err := c.chapterInfo(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				c.logger.Debug("No book info for chapter " + strconv.Itoa(id))
				return nil
			}

			mu.Lock()
			ret[id] = info
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ret, nil
}

func (c *Client) chapterInfo(ctx context.Context, id int) (types.ChapterInfo, bool, error) {
	query := url.Values{}
	query.Set("chapterId", strconv.Itoa(id))

	rep, err := c.do(ctx, http.MethodGet, chapterPath, query, true)
	if err == errNotFound {
		return types.ChapterInfo{}, false, nil
	}
	if err != nil {
		return types.ChapterInfo{}, false, fmt.Errorf("fetching chapter %d: %w", id, err)
	}

	var dto chapterDto
	if err := json.Unmarshal(rep.body, &dto); err != nil {
		return types.ChapterInfo{}, false, fmt.Errorf("%w: decoding chapter %d: %w", ErrMalformedResponse, id, err)
	}

	title := strings.TrimSpace(dto.TitleName)
	if title == "" {
		title = strings.TrimSpace(dto.Title)
	}
	if title == "" {
		return types.ChapterInfo{}, false, nil
	}

	info := types.ChapterInfo{
		BookTitle: title,
		SortOrder: int(dto.SortOrder),
	}

	seen := make(map[string]struct{}, len(dto.Writers))
	for _, w := range dto.Writers {
		name := strings.TrimSpace(w.Name)
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		info.Authors = append(info.Authors, name)
	}

	for _, g := range dto.Genres {
		if t := strings.TrimSpace(g.Title); t != "" {
			info.Genres = append(info.Genres, t)
		}
	}

	return info, true, nil
}

func unique(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	ret := make([]int, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ret = append(ret, id)
	}

	return ret
}
