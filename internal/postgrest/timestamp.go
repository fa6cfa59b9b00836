package postgrest

import (
	"encoding/json"
	"fmt"
	"time"
)

// PostgREST renders `timestamp without time zone` columns without an offset,
// which time.Time cannot unmarshal. Those values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, *raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("postgrest: unrecognized timestamp %q", *raw)
}

func (t *timestamp) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func (t *timestamp) value() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}
