package calendar

import (
	"testing"
	"time"

	"billcal/internal/core"
)

func TestISOWeekday(t *testing.T) {
	cases := []struct {
		in   time.Weekday
		want int
	}{
		{time.Sunday, 6},
		{time.Monday, 0},
		{time.Tuesday, 1},
		{time.Wednesday, 2},
		{time.Thursday, 3},
		{time.Friday, 4},
		{time.Saturday, 5},
	}
	for _, tc := range cases {
		if got := ISOWeekday(tc.in); got != tc.want {
			t.Errorf("ISOWeekday(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.March, 31},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tc := range cases {
		if got := DaysInMonth(tc.year, tc.month); got != tc.want {
			t.Errorf("DaysInMonth(%d, %s) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestBuildGridShapeForAllMonths(t *testing.T) {
	for year := 1999; year <= 2031; year++ {
		for month := time.January; month <= time.December; month++ {
			ref := time.Date(year, month, 17, 9, 0, 0, 0, time.UTC)
			rows := BuildGrid(ref, nil, time.Time{})

			inMonth := 0
			firstCol := -1
			for ri, row := range rows {
				for ci, c := range row {
					if c.InMonth {
						if firstCol < 0 {
							if ri != 0 {
								t.Fatalf("%d-%02d: first in-month cell not in first row", year, month)
							}
							firstCol = ci
						}
						inMonth++
						if c.Day != inMonth {
							t.Fatalf("%d-%02d: in-month days not ascending at %d", year, month, inMonth)
						}
					}
				}
			}

			days := DaysInMonth(year, month)
			if inMonth != days {
				t.Fatalf("%d-%02d: %d in-month cells, want %d", year, month, inMonth, days)
			}
			wantCol := ISOWeekday(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday())
			if firstCol != wantCol {
				t.Fatalf("%d-%02d: first column %d, want %d", year, month, firstCol, wantCol)
			}
			wantRows := (wantCol + days + 6) / 7
			if len(rows) != wantRows {
				t.Fatalf("%d-%02d: %d rows, want %d", year, month, len(rows), wantRows)
			}
			last := rows[len(rows)-1]
			if !last[0].InMonth && !rowHasInMonth(last) {
				t.Fatalf("%d-%02d: trailing row without in-month days", year, month)
			}
		}
	}
}

func rowHasInMonth(r Row) bool {
	for _, c := range r {
		if c.InMonth {
			return true
		}
	}
	return false
}

func TestBuildGridMarch2024(t *testing.T) {
	rows := BuildGrid(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), nil, time.Time{})
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}

	wantFirst := []int{26, 27, 28, 29, 1, 2, 3}
	for i, c := range rows[0] {
		if c.Day != wantFirst[i] {
			t.Fatalf("row 1 col %d: day %d, want %d", i, c.Day, wantFirst[i])
		}
		if c.InMonth != (i >= 4) {
			t.Fatalf("row 1 col %d: inMonth=%v", i, c.InMonth)
		}
	}
	if rows[0][0].Date.Month() != time.February {
		t.Fatalf("leading cells should be dated in February, got %s", rows[0][0].Date)
	}

	last := rows[4]
	if last[6].Day != 31 || !last[6].InMonth {
		t.Fatalf("March 2024 should end on Sunday the 31st, got %+v", last[6])
	}
}

func TestBuildGridTrailingPadding(t *testing.T) {
	// October 2024 starts on Tuesday and ends on Thursday.
	rows := BuildGrid(time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), nil, time.Time{})
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[0][0].Day != 30 || rows[0][0].InMonth {
		t.Fatalf("expected leading 30 Sep, got %+v", rows[0][0])
	}
	last := rows[4]
	want := []struct {
		day     int
		inMonth bool
	}{{28, true}, {29, true}, {30, true}, {31, true}, {1, false}, {2, false}, {3, false}}
	for i, w := range want {
		if last[i].Day != w.day || last[i].InMonth != w.inMonth {
			t.Fatalf("last row col %d: got day=%d inMonth=%v, want %d %v", i, last[i].Day, last[i].InMonth, w.day, w.inMonth)
		}
	}
	if last[4].Date.Month() != time.November {
		t.Fatalf("trailing cells should be dated in November, got %s", last[4].Date)
	}
}

func TestBuildGridNoTrailingRowOnBoundary(t *testing.T) {
	// February 2021 starts on Monday and has exactly 28 days.
	rows := BuildGrid(time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC), nil, time.Time{})
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for _, row := range rows {
		for _, c := range row {
			if !c.InMonth {
				t.Fatalf("unexpected out-of-month cell %+v", c)
			}
		}
	}
}

func event(id int64, y, m, d int) core.CalendarEvent {
	return core.CalendarEvent{ID: id, DueDate: core.NewDate(y, m, d), Amount: core.MustMoney("1")}
}

func TestBuildGridPlacesEvents(t *testing.T) {
	ev := core.CalendarEvent{
		ID:       1,
		DueDate:  core.NewDate(2024, 10, 15),
		BillName: "Electricity",
		Amount:   core.MustMoney("42.50"),
		Paid:     false,
	}
	events := []core.CalendarEvent{
		event(2, 2024, 10, 15),
		ev,
		event(3, 2024, 10, 1),
		event(4, 2024, 11, 1),  // next month, shown nowhere
		event(5, 2023, 10, 15), // same day other year
	}
	rows := BuildGrid(time.Date(2024, time.October, 20, 0, 0, 0, 0, time.UTC), events, time.Time{})

	seen := map[int64]int{}
	for _, row := range rows {
		for _, c := range row {
			for _, e := range c.Events {
				seen[e.ID]++
				if !c.InMonth {
					t.Fatalf("event %d placed in out-of-month cell", e.ID)
				}
				if !e.DueDate.SameDay(core.DateOf(c.Date)) {
					t.Fatalf("event %d due %s placed on %s", e.ID, e.DueDate, c.Date)
				}
			}
		}
	}
	for _, id := range []int64{1, 2, 3} {
		if seen[id] != 1 {
			t.Fatalf("event %d seen %d times, want 1", id, seen[id])
		}
	}
	if seen[4] != 0 || seen[5] != 0 {
		t.Fatalf("events outside the month must not be placed: %v", seen)
	}

	cell := rows[2][1] // Tuesday 15 October
	if cell.Day != 15 {
		t.Fatalf("expected day 15, got %d", cell.Day)
	}
	if len(cell.Events) != 2 || cell.Events[0].ID != 2 || cell.Events[1].ID != 1 {
		t.Fatalf("events must keep input order, got %+v", cell.Events)
	}
	got := cell.Events[1]
	if got.Amount.Plain() != "42.50" || got.Paid {
		t.Fatalf("unexpected event payload %+v", got)
	}
}

func TestBuildGridToday(t *testing.T) {
	today := time.Date(2024, time.October, 15, 18, 45, 0, 0, time.Local)
	rows := BuildGrid(time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), nil, today)

	count := 0
	for _, row := range rows {
		for _, c := range row {
			if c.IsToday {
				count++
				if c.Day != 15 || !c.InMonth {
					t.Fatalf("wrong today cell %+v", c)
				}
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one today cell, got %d", count)
	}

	other := BuildGrid(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), nil, today)
	for _, row := range other {
		for _, c := range row {
			if c.IsToday {
				t.Fatalf("no today cell expected in March, got %+v", c)
			}
		}
	}
}

func TestBuildGridOutOfMonthTodayNotFlagged(t *testing.T) {
	tests := []struct {
		name      string
		reference time.Time
		today     time.Time
	}{
		// September 2024 ends on a Monday: Oct 1 is a trailing cell.
		{"trailing", time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.October, 1, 9, 0, 0, 0, time.Local)},
		// October 2024 starts on a Tuesday: Sep 30 is a leading cell.
		{"leading", time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.September, 30, 9, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := false
			for _, row := range BuildGrid(tt.reference, nil, tt.today) {
				for _, c := range row {
					if !c.InMonth && c.Day == tt.today.Day() {
						found = true
					}
					if c.IsToday {
						t.Fatalf("unexpected today cell %+v", c)
					}
				}
			}
			if !found {
				t.Fatalf("grid should contain today's date as an out-of-month cell")
			}
		})
	}
}

func TestBuildGridIsDeterministic(t *testing.T) {
	ref := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
	events := []core.CalendarEvent{event(1, 2024, 10, 3), event(2, 2024, 10, 3)}
	a := BuildGrid(ref, events, time.Time{})
	b := BuildGrid(ref, events, time.Time{})
	if len(a) != len(b) {
		t.Fatalf("row count differs")
	}
	for i := range a {
		for j := range a[i] {
			if a[i][j].Day != b[i][j].Day || len(a[i][j].Events) != len(b[i][j].Events) {
				t.Fatalf("cell %d/%d differs", i, j)
			}
		}
	}
}
