package kavita

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/opds-community/libopds2-go/opds1"
	"golang.org/x/sync/errgroup"

	"kavitanotes/internal/types"
)

const seriesFeedTemplate = "/api/opds/%s/series/%d"

// FetchSeriesMetadata reads the OPDS feed of every series and collects the
// authors, genres and summary Kavita publishes there. Series with a missing
// feed are left out of the map.
func (c *Client) FetchSeriesMetadata(ctx context.Context, seriesIds []int) (types.SeriesMetadataMap, error) {
	ret := make(types.SeriesMetadataMap, len(seriesIds))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, id := range unique(seriesIds) {
		g.Go(func() error {
			meta, ok, err := c.seriesMetadata(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				c.logger.Debug("No OPDS feed for series " + strconv.Itoa(id))
				return nil
			}

			mu.Lock()
			ret[id] = meta
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ret, nil
}

func (c *Client) seriesMetadata(ctx context.Context, id int) (types.SeriesMetadata, bool, error) {
	path := fmt.Sprintf(seriesFeedTemplate, url.PathEscape(c.apiKey), id)

	rep, err := c.do(ctx, http.MethodGet, path, nil, false)
	if err == errNotFound {
		return types.SeriesMetadata{}, false, nil
	}
	if err != nil {
		return types.SeriesMetadata{}, false, fmt.Errorf("fetching series %d feed: %w", id, err)
	}

	l := c.logger.With(slog.Int("series", id))

	var feed opds1.Feed
	if err := xml.Unmarshal(removeDisallowedCodepoints(rep.body, l), &feed); err != nil {
		l.Error("Failed to unmarshal series feed: " + err.Error())
		return types.SeriesMetadata{}, false, fmt.Errorf("%w: unmarshalling series %d feed: %w", ErrMalformedResponse, id, err)
	}

	return seriesFromFeed(&feed, l), true, nil
}

func seriesFromFeed(feed *opds1.Feed, l *slog.Logger) types.SeriesMetadata {
	var meta types.SeriesMetadata

	seenGenres := make(map[string]struct{})
	seenWriters := make(map[string]struct{})

	for _, entry := range feed.Entries {
		if meta.Summary == "" {
			meta.Summary = strings.TrimSpace(entry.Content.Content)
		}

		for _, cat := range entry.Category {
			term := strings.TrimSpace(cat.Term)
			if term == "" {
				continue
			}

			if _, ok := seenGenres[strings.ToLower(term)]; ok {
				continue
			}
			seenGenres[strings.ToLower(term)] = struct{}{}

			meta.Genres = append(meta.Genres, types.Genre{Title: term})
		}

		for _, auth := range entry.Author {
			name := strings.TrimSpace(auth.Name)
			if name == "" {
				l.Warn("Found author without a name in entry " + strings.TrimSpace(entry.ID))
				continue
			}

			if _, ok := seenWriters[name]; ok {
				continue
			}
			seenWriters[name] = struct{}{}

			meta.Writers = append(meta.Writers, types.Person{Name: name})
		}
	}

	return meta
}

// removeDisallowedCodepoints drops runes that are not allowed in XML 1.0.
// Kavita copies metadata from epub files verbatim and those occasionally
// carry control characters encoding/xml refuses to parse.
func removeDisallowedCodepoints(bs []byte, l *slog.Logger) []byte {
	ret := make([]byte, 0, len(bs))
	buf := bs
	removed := 0

	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 {
			l.Warn("Going to fail XML parsing because the bytes do not represent valid UTF8")
			return bs
		}

		if isInCharacterRange(r) {
			ret = append(ret, buf[:size]...)
		} else {
			removed++
		}

		buf = buf[size:]
	}

	if removed > 0 {
		l.Warn("Removed " + strconv.Itoa(removed) + " invalid runes from XML")
	}

	return ret
}

// Decide whether the given rune is in the XML Character Range, per
// the Char production of https://www.xml.com/axml/testaxml.htm,
// Section 2.2 Characters.
func isInCharacterRange(r rune) (inrange bool) {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
