package database

import (
	"database/sql"
	"time"
)

// Layouts shared with the SQL (DATETIME) and search index representations.
const (
	LayoutSQL   = "2006-01-02 15:04:05"
	LayoutIndex = "2006-01-02T15:04:05"

	layoutSQLFraction = "2006-01-02 15:04:05.999999999"
	layoutSQLMilli    = "2006-01-02 15:04:05.000"
	layoutSQLMicro    = "2006-01-02 15:04:05.000000"
	layoutSQLNano     = "2006-01-02 15:04:05.000000000"
)

// now is swapped in tests.
var now = time.Now

// NowString returns the current local time in LayoutSQL.
func NowString() string {
	return now().Local().Format(LayoutSQL)
}

// ReformatToIndexTimestamp parses a local LayoutSQL string and renders it in
// LayoutIndex. The boolean is false when s does not parse or does not name
// exactly one instant in the local zone (skipped or repeated by a DST change).
func ReformatToIndexTimestamp(s string) (string, bool) {
	t, err := time.ParseInLocation(LayoutSQL, s, time.Local)
	if err != nil {
		return "", false
	}
	// ParseInLocation moves times inside a gap and picks one side of an overlap.
	if t.Format(LayoutSQL) != s ||
		t.Add(-time.Hour).Format(LayoutSQL) == s ||
		t.Add(time.Hour).Format(LayoutSQL) == s {
		return "", false
	}
	return t.Format(LayoutIndex), true
}

// EpochToString renders UTC epoch seconds in LayoutSQL.
func EpochToString(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(LayoutSQL)
}

// DatetimeFromRow returns the DATETIME value stored under column in row,
// formatted without zone by formatNaive. It reports
// false when the column is absent, NULL or not a datetime.
func DatetimeFromRow(row Row, column string) (string, bool) {
	v, ok := row[column]
	if !ok || v == nil {
		return "", false
	}
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return "", false
		}
		t = *x
	case sql.NullTime:
		if !x.Valid {
			return "", false
		}
		t = x.Time
	case []byte:
		return parseNaive(string(x))
	case string:
		return parseNaive(x)
	default:
		return "", false
	}
	return formatNaive(t), true
}

// parseNaive accepts the textual forms drivers return for DATETIME columns
// when time parsing is disabled.
func parseNaive(s string) (string, bool) {
	for _, layout := range []string{layoutSQLFraction, LayoutIndex + ".999999999", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return formatNaive(t), true
		}
	}
	return "", false
}

// formatNaive renders t in LayoutSQL with fractional seconds padded to 3, 6
// or 9 digits, whichever is the shortest exact form. Whole seconds have none.
func formatNaive(t time.Time) string {
	ns := t.Nanosecond()
	switch {
	case ns == 0:
		return t.Format(LayoutSQL)
	case ns%1_000_000 == 0:
		return t.Format(layoutSQLMilli)
	case ns%1_000 == 0:
		return t.Format(layoutSQLMicro)
	default:
		return t.Format(layoutSQLNano)
	}
}
