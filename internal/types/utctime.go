package types

import (
	"bytes"
	"fmt"
	"time"
)

// UtcTime decodes the timestamps Kavita sends. Columns named *Utc are
// serialized without an offset, so a missing zone is read as UTC.
type UtcTime struct {
	time.Time
}

var utcLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (t *UtcTime) UnmarshalJSON(bs []byte) error {
	if bytes.Equal(bs, []byte("null")) {
		return nil
	}

	if len(bs) < 2 || bs[0] != '"' || bs[len(bs)-1] != '"' {
		return fmt.Errorf("timestamp is not a string: %s", bs)
	}
	raw := string(bs[1 : len(bs)-1])

	for _, layout := range utcLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}

	return fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t UtcTime) MarshalJSON() ([]byte, error) {
	return t.Time.UTC().MarshalJSON()
}
