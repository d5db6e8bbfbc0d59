package http

import (
	"context"
	"net/http"

	"billcal/internal/calendar"
	"billcal/internal/core"
)

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type calendarView struct {
	Month    string
	Title    string
	Weekdays []string
	Rows     []calendar.Row
	Summary  core.MonthSummary
	// Error replaces the grid when events could not be loaded.
	Error string
}

type indexView struct {
	Calendar calendarView
}

// handleIndex renders the full calendar page for ?month=YYYY-MM.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthQuery(r.URL.Query(), s.now())
	s.render(w, r, "index.html", indexView{Calendar: s.calendarView(r.Context(), month)})
}

// handleCalendar renders the calendar partial. nav=prev|next|today moves
// relative to ?month.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nav := calendar.NewNavigator(ParseMonthQuery(q, s.now()), s.now)
	month := nav.Apply(q.Get("nav"))

	w.Header().Set("HX-Push-Url", "/?month="+month.String())
	s.render(w, r, "calendar.html", s.calendarView(r.Context(), month))
}

func (s *Server) calendarView(ctx context.Context, month calendar.Month) calendarView {
	view := calendarView{
		Month:    month.String(),
		Title:    month.Title(),
		Weekdays: weekdays,
	}

	events, err := s.bills.MonthEvents(ctx, core.DateOf(month.FirstDay()))
	if err != nil {
		s.metrics.EnrichFailures.Inc()
		s.logger.ErrorContext(ctx, "Failed to load calendar events", "month", view.Month, "error", err)
		_, msg := errorStatus(err)
		view.Error = "Could not load the bills of " + view.Title + ": " + msg
		return view
	}

	view.Rows = calendar.BuildGrid(month.FirstDay(), events, s.now())
	view.Summary = core.Summarize(events)
	return view
}
