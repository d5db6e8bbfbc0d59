package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"billcal/internal/cache"
	"billcal/internal/core"
	"billcal/internal/datasource/memory"
	applog "billcal/internal/log"
	"billcal/internal/services"
)

var fixedNow = time.Date(2024, time.October, 18, 10, 0, 0, 0, time.UTC)

type fixture struct {
	srv   *Server
	store *memory.Store
	bill  core.Bill
	inst  core.BillInstance
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Format: "json", Output: io.Discard})
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	p, err := store.CreateProfile(ctx, core.Profile{Name: "Flat", Street: "Main 1", City: "Graz", Country: "AT"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.CreateBill(ctx, core.Bill{ProfileID: p.ID, Name: "Gas"})
	if err != nil {
		t.Fatal(err)
	}
	bi, err := store.CreateBillInstance(ctx, core.BillInstance{
		BillID:  b.ID,
		Month:   core.NewDate(2024, 10, 1),
		DueDate: core.NewDate(2024, 10, 15),
		Amount:  core.MustMoney("1234.50"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if opts.Bills == nil {
		opts.Bills = services.NewBillService(store, services.NewEventEnricher(store, 4), nil, cache.NewMonthEvents(time.Minute))
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &fixture{srv: srv, store: store, bill: b, inst: bi}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t, Options{})

	rr := f.do(http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"October 2024", "Gas", "1,234.50 €", `class="day today"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("security headers missing")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := f.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCalendarPartialRows(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		target string
		title  string
		rows   int
	}{
		{"/ui/calendar?month=2024-03", "March 2024", 5},
		{"/ui/calendar?month=2021-02", "February 2021", 4},
		{"/ui/calendar?month=2024-09", "September 2024", 6},
		{"/ui/calendar?month=2024-01&nav=prev", "December 2023", 5},
		{"/ui/calendar?month=2023-12&nav=next", "January 2024", 5},
		{"/ui/calendar?month=2020-05&nav=today", "October 2024", 5},
		{"/ui/calendar?month=garbage", "October 2024", 5},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := f.do(http.MethodGet, tt.target, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			body := rr.Body.String()
			if !strings.Contains(body, "<h2>"+tt.title+"</h2>") {
				t.Errorf("missing title %q", tt.title)
			}
			if got := strings.Count(body, `class="week"`); got != tt.rows {
				t.Errorf("rows = %d, want %d", got, tt.rows)
			}
		})
	}

	rr := f.do(http.MethodGet, "/ui/calendar?month=2024-01&nav=prev", "")
	if got := rr.Header().Get("HX-Push-Url"); got != "/?month=2023-12" {
		t.Errorf("HX-Push-Url = %q", got)
	}
}

type failingLookup struct{}

func (failingLookup) GetBill(context.Context, int64) (core.Bill, error) {
	return core.Bill{}, core.Remote("get bill", errors.New("connection reset"))
}

func (failingLookup) GetProfile(context.Context, int64) (core.Profile, error) {
	return core.Profile{}, core.Remote("get profile", errors.New("connection reset"))
}

func TestCalendarEnrichFailureShowsPlaceholder(t *testing.T) {
	f := newFixture(t, Options{})
	bills := services.NewBillService(f.store, services.NewEventEnricher(failingLookup{}, 2), nil, nil)
	srv := NewServer(Options{Bills: bills, Now: func() time.Time { return fixedNow }, Logger: quietLogger()})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/calendar?month=2024-10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `class="placeholder error"`) {
		t.Fatalf("expected error placeholder, got %s", body)
	}
	if strings.Contains(body, `class="week"`) {
		t.Errorf("no grid should be rendered on failure")
	}

	// Months without instances never reach the lookup.
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/calendar?month=2024-03", nil))
	if strings.Count(rr.Body.String(), `class="week"`) != 5 {
		t.Errorf("empty month should render its grid")
	}
}

func TestCreateInstance(t *testing.T) {
	f := newFixture(t, Options{})

	rr := f.do(http.MethodPost, "/instances", "bill_id=1&month=2024-10&due_date=2024-10-20&amount=abc")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid amount: expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Errorf("validation errors should notify")
	}

	rr = f.do(http.MethodPost, "/instances", "bill_id=999&month=2024-10&due_date=2024-10-20&amount=5")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown bill: expected 404, got %d", rr.Code)
	}

	body := "bill_id=" + itoa64(f.bill.ID) + "&month=2024-10&due_date=2024-10-20&amount=12,30&description=Top+up"
	rr = f.do(http.MethodPost, "/instances", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	trig := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trig, EventCalendarRefresh) || !strings.Contains(trig, EventModalClose) {
		t.Errorf("unexpected triggers %s", trig)
	}

	cal := f.do(http.MethodGet, "/ui/calendar?month=2024-10", "").Body.String()
	if !strings.Contains(cal, "12.30 €") {
		t.Errorf("new instance missing from calendar")
	}
}

func TestCalendarPlacesInstanceByDueDate(t *testing.T) {
	f := newFixture(t, Options{})

	// Warm both months so a stale cache would hide the new instance.
	for _, m := range []string{"2024-09", "2024-10"} {
		f.do(http.MethodGet, "/ui/calendar?month="+m, "")
	}

	// Billed for September, due in October: the create form's default shape.
	body := "bill_id=" + itoa64(f.bill.ID) + "&month=2024-09&due_date=2024-10-18&amount=42.50"
	if rr := f.do(http.MethodPost, "/instances", body); rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body.String())
	}

	oct := f.do(http.MethodGet, "/ui/calendar?month=2024-10", "").Body.String()
	if got := strings.Count(oct, "42.50 €"); got != 1 {
		t.Fatalf("October grid shows the instance %d times, want exactly once", got)
	}
	day := strings.Index(oct, `<span class="day-number">18</span>`)
	if day < 0 || !strings.Contains(oct[day:strings.Index(oct[day:], "</td>")+day], "42.50 €") {
		t.Errorf("instance should sit in the cell of October 18")
	}

	sep := f.do(http.MethodGet, "/ui/calendar?month=2024-09", "").Body.String()
	if strings.Contains(sep, "42.50 €") {
		t.Errorf("September grid must not show an instance due in October")
	}
}

func TestUpdateAndTogglePaid(t *testing.T) {
	f := newFixture(t, Options{})
	id := itoa64(f.inst.ID)

	rr := f.do(http.MethodPut, "/instances/999", "bill_id="+itoa64(f.bill.ID)+"&month=2024-10&due_date=2024-10-15&amount=1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown instance: expected 404, got %d", rr.Code)
	}

	rr = f.do(http.MethodPut, "/instances/"+id, "bill_id="+itoa64(f.bill.ID)+"&month=2024-11&due_date=2024-11-03&amount=99")
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if strings.Contains(f.do(http.MethodGet, "/ui/calendar?month=2024-10", "").Body.String(), "Gas") {
		t.Errorf("moved instance still shown in October")
	}
	if !strings.Contains(f.do(http.MethodGet, "/ui/calendar?month=2024-11", "").Body.String(), "99.00 €") {
		t.Errorf("moved instance missing from November")
	}

	rr = f.do(http.MethodPost, "/instances/"+id+"/paid", "paid=true")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("HX-Trigger"), "Marked as paid") {
		t.Fatalf("toggle: status=%d trigger=%s", rr.Code, rr.Header().Get("HX-Trigger"))
	}
	bi, _ := f.store.GetBillInstance(context.Background(), f.inst.ID)
	if !bi.Paid {
		t.Errorf("instance should be paid")
	}

	rr = f.do(http.MethodPost, "/instances/abc/paid", "paid=true")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad id: expected 422, got %d", rr.Code)
	}
}

func TestDeleteInstance(t *testing.T) {
	f := newFixture(t, Options{})

	if rr := f.do(http.MethodDelete, "/instances/999", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := f.do(http.MethodDelete, "/instances/"+itoa64(f.inst.ID), ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if _, err := f.store.GetBillInstance(context.Background(), f.inst.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("instance should be gone, got %v", err)
	}
}

func TestInstanceModals(t *testing.T) {
	f := newFixture(t, Options{})

	rr := f.do(http.MethodGet, "/ui/instances/new", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("new modal status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`value="2024-09"`, `value="2024-10-18"`, "Flat · Gas", `hx-post="/instances"`} {
		if !strings.Contains(body, want) {
			t.Errorf("new modal missing %q", want)
		}
	}

	rr = f.do(http.MethodGet, "/ui/instances/"+itoa64(f.inst.ID)+"/edit", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `value="1234.50"`) {
		t.Fatalf("edit modal status=%d", rr.Code)
	}

	if rr := f.do(http.MethodGet, "/ui/instances/404/edit", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown instance, got %d", rr.Code)
	}
}

func TestProfilesAndBills(t *testing.T) {
	f := newFixture(t, Options{})

	rr := f.do(http.MethodPost, "/profiles", "name=Cabin&street=Lake+Rd&city=Bled&country=Slovenia")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad country: expected 422, got %d", rr.Code)
	}
	rr = f.do(http.MethodPost, "/profiles", "name=&street=Lake+Rd&city=Bled&country=SI")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name: expected 422, got %d", rr.Code)
	}

	rr = f.do(http.MethodPost, "/profiles", "name=Cabin&street=Lake+Rd&city=Bled&country=si")
	if rr.Code != http.StatusCreated || !strings.Contains(rr.Header().Get("HX-Trigger"), EventProfilesRefresh) {
		t.Fatalf("create profile: status=%d", rr.Code)
	}
	profiles, _ := f.store.ListProfiles(context.Background())
	var cabin core.Profile
	for _, p := range profiles {
		if p.Name == "Cabin" {
			cabin = p
		}
	}
	if cabin.Country != "SI" {
		t.Fatalf("expected stored profile with SI, got %+v", cabin)
	}

	rr = f.do(http.MethodPost, "/profiles/"+itoa64(cabin.ID)+"/bills", "name=Firewood")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create bill: status=%d", rr.Code)
	}
	if rr := f.do(http.MethodPost, "/profiles/999/bills", "name=Ghost"); rr.Code != http.StatusNotFound {
		t.Errorf("bill for unknown profile: expected 404, got %d", rr.Code)
	}

	page := f.do(http.MethodGet, "/profiles", "").Body.String()
	for _, want := range []string{"Cabin", "Firewood", "Flat", "Gas"} {
		if !strings.Contains(page, want) {
			t.Errorf("profiles page missing %q", want)
		}
	}

	rr = f.do(http.MethodPut, "/profiles/"+itoa64(cabin.ID), "name=Lake+Cabin&street=Lake+Rd&city=Bled&country=SI")
	if rr.Code != http.StatusOK {
		t.Fatalf("update profile: status=%d", rr.Code)
	}
	if !strings.Contains(f.do(http.MethodGet, "/ui/profiles", "").Body.String(), "Lake Cabin") {
		t.Errorf("renamed profile missing from partial")
	}

	if rr := f.do(http.MethodDelete, "/bills/999", ""); rr.Code != http.StatusNotFound {
		t.Errorf("delete unknown bill: expected 404, got %d", rr.Code)
	}
	if rr := f.do(http.MethodDelete, "/profiles/"+itoa64(cabin.ID), ""); rr.Code != http.StatusOK {
		t.Fatalf("delete profile: status=%d", rr.Code)
	}
	if rr := f.do(http.MethodDelete, "/profiles/"+itoa64(cabin.ID), ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	f := newFixture(t, Options{RateLimitPerMinute: 2})

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, f.do(http.MethodPost, "/profiles", "name=").Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third write to be limited, got %v", codes)
	}
	if rr := f.do(http.MethodGet, "/ui/calendar", ""); rr.Code != http.StatusOK {
		t.Errorf("reads must not be limited, got %d", rr.Code)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestReadyzReportsDataSource(t *testing.T) {
	f := newFixture(t, Options{Pinger: fakePinger{err: core.Remote("ping", errors.New("refused"))}})
	rr := f.do(http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Options{})
	f.do(http.MethodGet, "/ui/calendar?month=2024-03", "")

	rr := f.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `billcal_http_requests_total{code="200",method="GET",route="/ui/calendar"}`) {
		t.Errorf("request counter missing:\n%s", firstLines(body, 40))
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Errorf("go collector missing")
	}
}

func TestStaticAssets(t *testing.T) {
	f := newFixture(t, Options{})
	rr := f.do(http.MethodGet, "/static/app.css", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("static status=%d cache=%q", rr.Code, rr.Header().Get("Cache-Control"))
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrEmptyName, http.StatusUnprocessableEntity},
		{core.NotFound("bill", 3), http.StatusNotFound},
		{core.Remote("query", errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func itoa64(n int64) string { return strconv.FormatInt(n, 10) }

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
