package document

import (
	"sort"

	"kavitanotes/internal/types"
)

// Group is one bucket produced by GroupBy.
type Group[K comparable, V any] struct {
	Key   K
	Items []V
}

// GroupBy buckets items by key. Groups come out in the order their keys were
// first seen and items keep their relative input order.
func GroupBy[K comparable, V any](items []V, key func(V) K) []Group[K, V] {
	var groups []Group[K, V]
	index := make(map[K]int)

	for _, item := range items {
		k := key(item)

		ix, ok := index[k]
		if !ok {
			ix = len(groups)
			index[k] = ix
			groups = append(groups, Group[K, V]{Key: k})
		}

		groups[ix].Items = append(groups[ix].Items, item)
	}

	return groups
}

type ChapterGroup struct {
	ChapterId   int
	Annotations []types.Annotation
}

type BookGroup struct {
	Title     string
	SortOrder int
	Authors   []string
	Genres    []string
	Chapters  []ChapterGroup
}

type SeriesGroup struct {
	SeriesId int
	// Head is the first annotation seen for the series, it names the group.
	Head  types.Annotation
	Books []BookGroup
}

// GroupSeries builds the series -> book -> chapter tree. Series and chapters
// keep first-seen order; books inside a series are stably sorted by their
// sort order.
func GroupSeries(annotations []types.Annotation, chapters types.ChapterInfoMap) []SeriesGroup {
	bySeries := GroupBy(annotations, func(a types.Annotation) int { return a.SeriesId })

	ret := make([]SeriesGroup, 0, len(bySeries))
	for _, sg := range bySeries {
		byBook := GroupBy(sg.Items, func(a types.Annotation) string { return BookTitle(&a, chapters) })

		books := make([]BookGroup, 0, len(byBook))
		for _, bg := range byBook {
			byChapter := GroupBy(bg.Items, func(a types.Annotation) int { return a.ChapterId })

			chs := make([]ChapterGroup, 0, len(byChapter))
			for _, cg := range byChapter {
				chs = append(chs, ChapterGroup{ChapterId: cg.Key, Annotations: cg.Items})
			}

			books = append(books, BookGroup{
				Title:     bg.Key,
				SortOrder: BookSortOrder(bg.Items, chapters),
				Authors:   BookAuthors(bg.Items, chapters),
				Genres:    BookGenres(bg.Items, chapters),
				Chapters:  chs,
			})
		}

		sort.SliceStable(books, func(i, j int) bool {
			return books[i].SortOrder < books[j].SortOrder
		})

		ret = append(ret, SeriesGroup{SeriesId: sg.Key, Head: sg.Items[0], Books: books})
	}

	return ret
}
