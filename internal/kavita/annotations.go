package kavita

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"kavitanotes/internal/types"
)

const (
	annotationsPath  = "/api/Annotation/all"
	paginationHeader = "Pagination"
)

type pagination struct {
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalItems   int `json:"totalItems"`
	TotalPages   int `json:"totalPages"`
}

// FetchAnnotations returns every annotation visible to the api key owner, in
// server order. Pages are requested until the Pagination header says there
// are no more; without the header a short page ends the listing.
func (c *Client) FetchAnnotations(ctx context.Context) ([]types.Annotation, error) {
	var ret []types.Annotation

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("pageNumber", strconv.Itoa(page))
		query.Set("pageSize", strconv.Itoa(c.pageSize))

		rep, err := c.do(ctx, http.MethodGet, annotationsPath, query, true)
		if err == errNotFound {
			return nil, fmt.Errorf("fetching annotations page %d: %w: annotations endpoint not found", page, ErrConnectivity)
		}
		if err != nil {
			return nil, fmt.Errorf("fetching annotations page %d: %w", page, err)
		}

		var items []types.Annotation
		if err := json.Unmarshal(rep.body, &items); err != nil {
			return nil, fmt.Errorf("%w: decoding annotations page %d: %w", ErrMalformedResponse, page, err)
		}

		ret = append(ret, items...)

		if raw := rep.header.Get(paginationHeader); raw != "" {
			var p pagination
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				return nil, fmt.Errorf("%w: decoding pagination header: %w", ErrMalformedResponse, err)
			}
			if p.CurrentPage >= p.TotalPages || len(items) == 0 {
				break
			}
			continue
		}

		if len(items) < c.pageSize {
			break
		}
	}

	c.logger.Debug("Fetched " + strconv.Itoa(len(ret)) + " annotations")
	return ret, nil
}
