package document

import (
	"strings"
	"time"

	"kavitanotes/internal/types"
)

const (
	Title         = "Kavita Annotations"
	NoAnnotations = "*No annotations found.*"

	// ISO-8601 in UTC with millisecond precision, e.g. 2024-03-01T10:00:00.000Z
	updatedLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Builder assembles the annotations document. Now is the only source of
// non-determinism; tests pin it to get byte-identical output.
type Builder struct {
	Now func() time.Time
}

// Build renders the document with the current wall clock.
func Build(annotations []types.Annotation, opts Options,
	series types.SeriesMetadataMap, chapters types.ChapterInfoMap) string {

	return (&Builder{Now: time.Now}).Build(annotations, opts, series, chapters)
}

// Stats describes what ended up in a built document.
type Stats struct {
	Annotations int `json:"annotations"`
	// Rendered excludes annotations filtered out as spoilers
	Rendered int `json:"rendered"`
	Series   int `json:"series"`
	Books    int `json:"books"`
	Chapters int `json:"chapters"`
}

// Build renders annotations into a single Markdown document. series is the
// legacy enrichment source and may be nil; it is only consulted for chapters
// that chapters does not know about.
func (b *Builder) Build(annotations []types.Annotation, opts Options,
	series types.SeriesMetadataMap, chapters types.ChapterInfoMap) string {

	text, _ := b.BuildWithStats(annotations, opts, series, chapters)
	return text
}

// BuildWithStats is Build which also reports what the document contains.
func (b *Builder) BuildWithStats(annotations []types.Annotation, opts Options,
	series types.SeriesMetadataMap, chapters types.ChapterInfoMap) (string, Stats) {

	stats := Stats{Annotations: len(annotations)}

	lines := b.frontmatter(opts)
	lines = append(lines, "", "# "+Title, "")

	if len(annotations) == 0 {
		lines = append(lines, NoAnnotations)
		return strings.Join(lines, "\n"), stats
	}

	if len(series) > 0 {
		chapters = FoldSeriesMetadata(annotations, series, chapters)
	}

	groups := GroupSeries(annotations, chapters)
	stats.Series = len(groups)

	for ix := range groups {
		lines = appendSeries(lines, &groups[ix], opts, &stats)
	}

	return strings.Join(lines, "\n"), stats
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}

	return b.Now()
}

func (b *Builder) frontmatter(opts Options) []string {
	lines := []string{"---", "title: " + Title}

	if opts.IncludeTags {
		first := "annotations"
		if prefix := strings.TrimSuffix(opts.TagPrefix, "/"); prefix != "" {
			first = prefix + "/" + first
		}
		lines = append(lines, "tags:", "  - "+first, "  - kavita")
	}

	return append(lines, "updated: "+b.now().UTC().Format(updatedLayout), "---")
}

func appendSeries(lines []string, sg *SeriesGroup, opts Options, stats *Stats) []string {
	name := SeriesDisplayName(&sg.Head)

	lines = append(lines, "## "+name)
	if opts.IncludeWikilinks {
		lines = append(lines, "**Series:** "+MakeLink(name))
	}
	lines = append(lines, "**Library:** "+LibraryDisplayName(&sg.Head), "")

	for ix := range sg.Books {
		lines = appendBook(lines, &sg.Books[ix], opts, stats)
	}

	return lines
}

func appendBook(lines []string, bg *BookGroup, opts Options, stats *Stats) []string {
	stats.Books++
	stats.Chapters += len(bg.Chapters)

	lines = append(lines, "### "+bg.Title)

	if len(bg.Authors) > 0 {
		authors := make([]string, 0, len(bg.Authors))
		for _, author := range bg.Authors {
			if opts.IncludeWikilinks {
				author = MakeLink(author)
			}
			authors = append(authors, author)
		}
		lines = append(lines, "**Author:** "+strings.Join(authors, ", "))
	}

	if opts.IncludeWikilinks {
		lines = append(lines, "**Book:** "+MakeLink(bg.Title))
	}

	if len(bg.Genres) > 0 {
		lines = append(lines, "**Genres:** "+strings.Join(bg.Genres, ", "))

		if opts.IncludeTags {
			tags := make([]string, 0, len(bg.Genres))
			for _, genre := range bg.Genres {
				tags = append(tags, MakeTag(genre, opts.TagPrefix))
			}
			lines = append(lines, "**Tags:** "+strings.Join(tags, " "))
		}
	}

	lines = append(lines, "")

	for _, cg := range bg.Chapters {
		lines = append(lines, "#### Chapter: "+ChapterDisplayName(&cg.Annotations[0]), "")

		for ix := range cg.Annotations {
			block, ok := RenderAnnotation(&cg.Annotations[ix], opts)
			if !ok {
				continue
			}
			stats.Rendered++
			lines = append(lines, block, "", "---", "")
		}
	}

	return lines
}
