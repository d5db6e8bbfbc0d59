package core

// MonthSummary is a compact summary of one month's calendar events.
type MonthSummary struct {
	Count     int
	PaidCount int
	Total     Money
	Paid      Money
	Unpaid    Money
}

// Summarize totals the events of a month.
func Summarize(events []CalendarEvent) MonthSummary {
	var s MonthSummary
	for _, e := range events {
		s.Count++
		s.Total = s.Total.Add(e.Amount)
		if e.Paid {
			s.PaidCount++
			s.Paid = s.Paid.Add(e.Amount)
		} else {
			s.Unpaid = s.Unpaid.Add(e.Amount)
		}
	}
	return s
}
