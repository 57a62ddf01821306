package catalog

import (
	"strconv"
	"strings"
	"time"
)

// CompareVersions compares two dot-separated version strings component
// by component. Components that fail to parse as integers count as
// zero, and the shorter version is zero-padded, so "1.2" equals
// "1.2.0". Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = atoiOrZero(as[i])
		}
		if i < len(bs) {
			bv = atoiOrZero(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// timeLayouts is the accepted precedence order for catalog and
// database time strings.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC822,
}

// ParseTime parses a time string trying each accepted layout in order.
// The zero time and false are returned when nothing matches.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CompareDates compares two DD/MM/YYYY date strings as used in update
// candidate selection. Returns -1, 0, or 1; unparseable dates compare
// as the zero time.
func CompareDates(a, b string) int {
	const layout = "02/01/2006"
	at, _ := time.Parse(layout, strings.TrimSpace(a))
	bt, _ := time.Parse(layout, strings.TrimSpace(b))
	switch {
	case at.Before(bt):
		return -1
	case at.After(bt):
		return 1
	default:
		return 0
	}
}
