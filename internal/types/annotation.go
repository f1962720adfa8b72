package types

// Annotation is a single highlight or note as returned by Kavita.
//
// Name fields are pointers because Kavita sends null for them when the
// entity has no human-readable name; use the document package resolvers
// rather than dereferencing them directly.
type Annotation struct {
	Id int `json:"id"`

	XPath       string `json:"xPath"`
	EndingXPath string `json:"endingXPath"`
	PageNumber  int    `json:"pageNumber"`

	SelectedText      string  `json:"selectedText"`
	Comment           *string `json:"comment"`
	ContainsSpoiler   bool    `json:"containsSpoiler"`
	SelectedSlotIndex int     `json:"selectedSlotIndex"`

	ChapterId    int     `json:"chapterId"`
	ChapterTitle *string `json:"chapterTitle"`
	VolumeId     int     `json:"volumeId"`
	VolumeName   *string `json:"volumeName"`
	SeriesId     int     `json:"seriesId"`
	SeriesName   *string `json:"seriesName"`
	LibraryId    int     `json:"libraryId"`
	LibraryName  *string `json:"libraryName"`

	OwnerUserId   int    `json:"ownerUserId"`
	OwnerUsername string `json:"ownerUsername"`

	CreatedUtc      UtcTime `json:"createdUtc"`
	LastModifiedUtc UtcTime `json:"lastModifiedUtc"`
}
