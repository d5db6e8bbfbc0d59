package calendar

import (
	"fmt"
	"time"
)

// Month is a year+month pair; the day of month is irrelevant.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t, as seen in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "2006-01".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// AddMonths moves by n months with year rollover.
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.FirstDay().AddDate(0, n, 0))
}

// FirstDay returns midnight UTC of the first day of the month.
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// String formats the month as "2006-01", the form ParseMonth accepts.
func (m Month) String() string {
	return m.FirstDay().Format("2006-01")
}

// Title formats the month for headings ("October 2024").
func (m Month) Title() string {
	return m.FirstDay().Format("January 2006")
}

// Navigator holds the month currently displayed. All transitions are total.
type Navigator struct {
	current Month
	now     func() time.Time
}

// NewNavigator starts at the given month. A nil clock means time.Now.
func NewNavigator(start Month, now func() time.Time) *Navigator {
	if now == nil {
		now = time.Now
	}
	return &Navigator{current: start, now: now}
}

// Current returns the displayed month.
func (n *Navigator) Current() Month {
	return n.current
}

// Previous moves one month back.
func (n *Navigator) Previous() Month {
	n.current = n.current.AddMonths(-1)
	return n.current
}

// Next moves one month forward.
func (n *Navigator) Next() Month {
	n.current = n.current.AddMonths(1)
	return n.current
}

// JumpToToday resets to the clock's current month.
func (n *Navigator) JumpToToday() Month {
	n.current = MonthOf(n.now())
	return n.current
}

// Apply runs the named transition ("prev", "next", "today"); anything else
// leaves the month unchanged.
func (n *Navigator) Apply(action string) Month {
	switch action {
	case "prev":
		return n.Previous()
	case "next":
		return n.Next()
	case "today":
		return n.JumpToToday()
	default:
		return n.current
	}
}
