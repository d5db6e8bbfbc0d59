// Package calendar lays bill events out on a Monday-first month grid and
// tracks which month is being displayed.
//
// Everything here is pure: BuildGrid depends only on its arguments, and
// Navigator owns its state explicitly instead of reading globals.
package calendar

import (
	"time"

	"billcal/internal/core"
)

// Columns is the number of cells in every grid row.
const Columns = 7

// Cell is one day of the grid.
type Cell struct {
	Day     int
	Date    time.Time
	InMonth bool
	IsToday bool
	Events  []core.CalendarEvent
}

// Row is one calendar week, Monday first.
type Row [Columns]Cell

// ISOWeekday maps Go's Sunday-first weekday to a Monday-first column (Monday=0 .. Sunday=6).
func ISOWeekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// DaysInMonth returns the number of days of the given month, using day 0 of
// the following month so year rollover and leap years come for free.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// BuildGrid returns ceil((lead+days)/7) rows for the month containing reference.
// Leading cells hold the previous month's last days, trailing cells pad the last
// row with the next month's first days. Each in-month cell lists, in input order,
// every event due on that exact day.
func BuildGrid(reference time.Time, events []core.CalendarEvent, today time.Time) []Row {
	year, month := reference.Year(), reference.Month()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	total := DaysInMonth(year, month)
	lead := ISOWeekday(first.Weekday())

	cells := make([]Cell, 0, ((lead+total+Columns-1)/Columns)*Columns)

	prev := first.AddDate(0, 0, -lead)
	for i := 0; i < lead; i++ {
		d := prev.AddDate(0, 0, i)
		cells = append(cells, outOfMonth(d))
	}

	byDay := groupByDay(year, month, events)
	for day := 1; day <= total; day++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		cells = append(cells, Cell{
			Day:     day,
			Date:    d,
			InMonth: true,
			IsToday: isToday(d, today),
			Events:  byDay[day],
		})
	}

	next := first.AddDate(0, 1, 0)
	for i := 0; len(cells)%Columns != 0; i++ {
		cells = append(cells, outOfMonth(next.AddDate(0, 0, i)))
	}

	rows := make([]Row, 0, len(cells)/Columns)
	for i := 0; i < len(cells); i += Columns {
		var r Row
		copy(r[:], cells[i:i+Columns])
		rows = append(rows, r)
	}
	return rows
}

// outOfMonth cells are never flagged as today, even when they fall on it.
func outOfMonth(d time.Time) Cell {
	return Cell{Day: d.Day(), Date: d}
}

// groupByDay keeps only events due in year/month, preserving their input order.
func groupByDay(year int, month time.Month, events []core.CalendarEvent) map[int][]core.CalendarEvent {
	out := make(map[int][]core.CalendarEvent)
	for _, e := range events {
		if e.DueDate.Year() != year || e.DueDate.Month() != int(month) {
			continue
		}
		out[e.DueDate.Day()] = append(out[e.DueDate.Day()], e)
	}
	return out
}

// isToday compares local date components only; it is a styling hint.
func isToday(d, today time.Time) bool {
	if today.IsZero() {
		return false
	}
	return d.Year() == today.Year() && d.Month() == today.Month() && d.Day() == today.Day()
}
