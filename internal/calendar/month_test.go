package calendar

import (
	"testing"
	"time"
)

func TestNavigatorPreviousNextRoundTrip(t *testing.T) {
	for year := 2020; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			start := Month{Year: year, Month: month}
			nav := NewNavigator(start, nil)
			nav.Previous()
			if got := nav.Next(); got != start {
				t.Fatalf("prev+next from %s returned %s", start, got)
			}
			nav.Next()
			if got := nav.Previous(); got != start {
				t.Fatalf("next+prev from %s returned %s", start, got)
			}
		}
	}
}

func TestNavigatorYearBoundaries(t *testing.T) {
	nav := NewNavigator(Month{Year: 2024, Month: time.January}, nil)
	if got := nav.Previous(); got != (Month{Year: 2023, Month: time.December}) {
		t.Fatalf("expected December 2023, got %s", got)
	}
	if got := nav.Next(); got != (Month{Year: 2024, Month: time.January}) {
		t.Fatalf("expected January 2024, got %s", got)
	}

	nav = NewNavigator(Month{Year: 2024, Month: time.December}, nil)
	if got := nav.Next(); got != (Month{Year: 2025, Month: time.January}) {
		t.Fatalf("expected January 2025, got %s", got)
	}
}

func TestNavigatorJumpToToday(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC) }
	for _, start := range []Month{{1999, time.March}, {2026, time.October}, {2030, time.January}} {
		nav := NewNavigator(start, clock)
		nav.Next()
		if got := nav.JumpToToday(); got != (Month{Year: 2026, Month: time.October}) {
			t.Fatalf("from %s: expected 2026-10, got %s", start, got)
		}
		if nav.Current() != (Month{Year: 2026, Month: time.October}) {
			t.Fatalf("current not updated")
		}
	}
}

func TestNavigatorJumpToTodayRealClock(t *testing.T) {
	nav := NewNavigator(Month{Year: 1990, Month: time.May}, nil)
	now := time.Now()
	got := nav.JumpToToday()
	if got.Year != now.Year() || got.Month != now.Month() {
		// The month may have turned over between the two reads; retry once.
		now = time.Now()
		if got.Year != now.Year() || got.Month != now.Month() {
			t.Fatalf("expected %d-%02d, got %s", now.Year(), now.Month(), got)
		}
	}
}

func TestNavigatorApply(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, time.October, 2, 0, 0, 0, 0, time.UTC) }
	nav := NewNavigator(Month{Year: 2024, Month: time.March}, clock)
	cases := []struct {
		action string
		want   string
	}{
		{"prev", "2024-02"},
		{"next", "2024-03"},
		{"bogus", "2024-03"},
		{"", "2024-03"},
		{"today", "2024-10"},
	}
	for _, tc := range cases {
		if got := nav.Apply(tc.action).String(); got != tc.want {
			t.Fatalf("Apply(%q) = %s, want %s", tc.action, got, tc.want)
		}
	}
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != (Month{Year: 2024, Month: time.October}) {
		t.Fatalf("unexpected month %v", m)
	}
	if m.Title() != "October 2024" {
		t.Fatalf("unexpected title %q", m.Title())
	}
	for _, bad := range []string{"", "2024-13", "2024/10", "october"} {
		if _, err := ParseMonth(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
