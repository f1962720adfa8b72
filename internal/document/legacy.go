package document

import "kavitanotes/internal/types"

// FoldSeriesMetadata converts legacy series metadata into chapter info for
// every annotated chapter the canonical map does not cover. The synthesized
// entries keep the series display name as book title and sort order 0, so
// grouping and ordering are exactly what an unmapped chapter would get; only
// authors and genres are filled in.
//
// The returned map is a new map; chapters is never modified.
func FoldSeriesMetadata(annotations []types.Annotation,
	series types.SeriesMetadataMap, chapters types.ChapterInfoMap) types.ChapterInfoMap {

	ret := make(types.ChapterInfoMap, len(chapters))
	for id, info := range chapters {
		ret[id] = info
	}

	for ix := range annotations {
		a := &annotations[ix]

		if _, ok := ret[a.ChapterId]; ok {
			continue
		}

		meta, ok := series[a.SeriesId]
		if !ok {
			continue
		}

		var authors []string
		for _, w := range meta.Writers {
			if w.Name != "" {
				authors = append(authors, w.Name)
			}
		}

		var genres []string
		for _, g := range meta.Genres {
			if g.Title != "" {
				genres = append(genres, g.Title)
			}
		}

		ret[a.ChapterId] = types.ChapterInfo{
			BookTitle: SeriesDisplayName(a),
			Authors:   authors,
			Genres:    genres,
		}
	}

	return ret
}
