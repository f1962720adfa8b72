package document

import (
	"strconv"

	"kavitanotes/internal/types"
)

func nameOr(name *string, kind string, id int) string {
	if name != nil && *name != "" {
		return *name
	}

	return kind + " " + strconv.Itoa(id)
}

func SeriesDisplayName(a *types.Annotation) string {
	return nameOr(a.SeriesName, "Series", a.SeriesId)
}

func ChapterDisplayName(a *types.Annotation) string {
	return nameOr(a.ChapterTitle, "Chapter", a.ChapterId)
}

func LibraryDisplayName(a *types.Annotation) string {
	return nameOr(a.LibraryName, "Library", a.LibraryId)
}

// BookTitle resolves the book an annotation belongs to. Without chapter info
// the whole series is treated as one book.
func BookTitle(a *types.Annotation, chapters types.ChapterInfoMap) string {
	if info, ok := chapters[a.ChapterId]; ok {
		return info.BookTitle
	}

	return SeriesDisplayName(a)
}

func groupInfo(group []types.Annotation, chapters types.ChapterInfoMap) (types.ChapterInfo, bool) {
	if len(group) == 0 {
		return types.ChapterInfo{}, false
	}

	info, ok := chapters[group[0].ChapterId]
	return info, ok
}

func BookAuthors(group []types.Annotation, chapters types.ChapterInfoMap) []string {
	info, _ := groupInfo(group, chapters)
	return info.Authors
}

func BookGenres(group []types.Annotation, chapters types.ChapterInfoMap) []string {
	info, _ := groupInfo(group, chapters)
	return info.Genres
}

// BookSortOrder is used only to order books within a series, never displayed.
func BookSortOrder(group []types.Annotation, chapters types.ChapterInfoMap) int {
	info, _ := groupInfo(group, chapters)
	return info.SortOrder
}
