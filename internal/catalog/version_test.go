package catalog

import (
	"testing"
	"time"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.2.1", "1.2", 1},
		{"1.2", "1.10", -1},
		{"2.0", "1.9.9", 1},
		{"6.4", "6.0", 1},
		{"0.9", "1.0", -1},
		{"1.abc.0", "1.0.0", 0},
		{"", "0", 0},
	}

	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2024-03-12T10:30:00Z", true},
		{"2024-03-12 10:30:00", true},
		{"Tue, 12 Mar 2024 10:30:00 UTC", true},
		{"12 Mar 24 10:30 UTC", true},
		{"not a time", false},
		{"", false},
	}

	for _, tt := range tests {
		got, ok := ParseTime(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseTime(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if !ok && !got.IsZero() {
			t.Errorf("ParseTime(%q) should return the zero time on failure", tt.in)
		}
	}
}

func TestParseTime_RFC3339Value(t *testing.T) {
	got, ok := ParseTime("2024-03-12T10:30:00Z")
	if !ok {
		t.Fatal("ParseTime() should accept RFC3339")
	}
	want := time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseTime() = %v, want %v", got, want)
	}
}

func TestCompareDates(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"12/03/2024", "12/03/2024", 0},
		{"13/03/2024", "12/03/2024", 1},
		{"12/03/2024", "13/03/2024", -1},
		{"01/01/2025", "31/12/2024", 1},
		// Day-first: 02/03 is March 2nd, 01/04 is April 1st.
		{"02/03/2024", "01/04/2024", -1},
		{"garbage", "12/03/2024", -1},
		{"garbage", "garbage", 0},
	}

	for _, tt := range tests {
		if got := CompareDates(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareDates(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
