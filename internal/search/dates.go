package search

import (
	"fmt"
	"time"
)

// dateLayouts are tried in order, most to least precise, matching the FHIR
// `date`/`dateTime`/`instant` grammar's partial-precision forms.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// parseDateValue parses a FHIR date/dateTime/instant value, accepting
// reduced precision (year, year-month, date-only).
func parseDateValue(s string) (timeLike, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timeLike{t}, nil
		}
	}
	return timeLike{}, fmt.Errorf("unable to parse date: %s", s)
}

// isDatePrecisionDay reports whether s was written with day precision only
// (YYYY-MM-DD), which makes an "eq" comparison match the whole day.
func isDatePrecisionDay(s string) bool {
	return len(s) == 10
}

// timeLike is a tiny wrapper so the builder's date comparator can format
// and widen values without importing time in every call site.
type timeLike struct {
	t time.Time
}

func (tl timeLike) Format3339() string { return tl.t.Format(time.RFC3339Nano) }

// Widen returns the [-1day, +1day] window used by the "ap" (approximately)
// prefix.
func (tl timeLike) Widen() (timeLike, timeLike) {
	day := 24 * time.Hour
	return timeLike{tl.t.Add(-day)}, timeLike{tl.t.Add(day)}
}

func (tl timeLike) EndOfDay() timeLike {
	return timeLike{tl.t.Add(24*time.Hour - time.Nanosecond)}
}
