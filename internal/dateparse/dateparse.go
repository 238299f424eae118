// Package dateparse coerces the heterogeneous date representations found in
// workbook exports and manually maintained database columns into time.Time.
package dateparse

import (
	"math"
	"strings"
	"time"
)

// serialEpoch is day zero for spreadsheet date serials. The 1899-12-30 origin
// reproduces the historical 1900 leap-year offset for serials above 59.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Month-first layouts are tried before day-first ones. The primary data
// source emits US-style dates; day-first is only a fallback for manually
// entered German dates. Reordering these silently transposes day and month
// for inputs like "03/04/2025".
var usLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

var germanLayouts = []string{
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
}

// Generic fallbacks, again month-first before day-first.
var fallbackMonthFirst = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var fallbackDayFirst = []string{
	"2/1/2006 15:04:05",
	"2/1/2006",
	"2-1-2006",
	"2 Jan 2006",
	"2 January 2006",
}

// FromSerial converts a spreadsheet date serial into a timestamp. The
// fractional part encodes time of day.
func FromSerial(serial float64) time.Time {
	days := math.Floor(serial)
	frac := serial - days
	secs := math.Round(frac * 86400)
	return serialEpoch.Add(time.Duration(days)*24*time.Hour + time.Duration(secs)*time.Second)
}

// Coerce parses val into a timestamp. It reports ok=false for values it
// cannot interpret; a failed parse is never an error, callers decide whether
// a missing date is acceptable.
func Coerce(val any) (time.Time, bool) {
	switch v := val.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v, true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case float64:
		return coerceSerial(v)
	case float32:
		return coerceSerial(float64(v))
	case int:
		return coerceSerial(float64(v))
	case int32:
		return coerceSerial(float64(v))
	case int64:
		return coerceSerial(float64(v))
	case string:
		return coerceString(v)
	default:
		return time.Time{}, false
	}
}

// coerceSerial only accepts values above 59; anything smaller is too
// ambiguous to be a date serial.
func coerceSerial(v float64) (time.Time, bool) {
	if v <= 59 {
		return time.Time{}, false
	}
	return FromSerial(v), true
}

func coerceString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layouts := range [][]string{usLayouts, germanLayouts, fallbackMonthFirst, fallbackDayFirst} {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
