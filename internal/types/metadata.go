package types

// ChapterInfo is what is known about the book a chapter belongs to.
type ChapterInfo struct {
	BookTitle string   `json:"book_title"`
	SortOrder int      `json:"sort_order"`
	Authors   []string `json:"authors"`
	Genres    []string `json:"genres"`
}

// ChapterInfoMap is keyed by chapter id. Unknown chapters are simply absent.
type ChapterInfoMap map[int]ChapterInfo

type Person struct {
	Name string `json:"name"`
}

type Genre struct {
	Title string `json:"title"`
}

// SeriesMetadata is the legacy per-series enrichment source. ChapterInfo is
// preferred; see document.FoldSeriesMetadata.
type SeriesMetadata struct {
	Summary string   `json:"summary"`
	Genres  []Genre  `json:"genres"`
	Writers []Person `json:"writers"`
}

// SeriesMetadataMap is keyed by series id.
type SeriesMetadataMap map[int]SeriesMetadata
