package document

import (
	"strconv"
	"strings"

	"kavitanotes/internal/types"
)

// Options control what ends up in the document. All combinations are valid.
type Options struct {
	IncludeComments  bool
	IncludeSpoilers  bool
	IncludeTags      bool
	TagPrefix        string
	IncludeWikilinks bool
}

const emptyCommentPlaceholder = "{}"

// hasComment reports whether the comment carries anything worth a note line.
// Kavita stores "{}" for annotations whose note editor was opened but left empty.
func hasComment(comment *string) bool {
	if comment == nil {
		return false
	}

	trimmed := strings.TrimSpace(*comment)
	return trimmed != "" && trimmed != emptyCommentPlaceholder
}

func quote(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for ix, line := range lines {
		lines[ix] = "> " + line
	}

	return strings.Join(lines, "\n")
}

// RenderAnnotation renders a single annotation block. The second result is
// false when the annotation must be left out of the document entirely.
func RenderAnnotation(a *types.Annotation, opts Options) (string, bool) {
	if a.ContainsSpoiler && !opts.IncludeSpoilers {
		return "", false
	}

	parts := []string{quote(a.SelectedText)}

	if opts.IncludeComments && hasComment(a.Comment) {
		parts = append(parts, "", "*Note:* "+*a.Comment)
	}

	if a.PageNumber > 0 {
		parts = append(parts, "", "<small>Page "+strconv.Itoa(a.PageNumber)+"</small>")
	}

	return strings.Join(parts, "\n"), true
}
