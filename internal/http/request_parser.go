// Package http serves the calendar UI.
//
// This file turns request parameters and bodies into domain values. Every
// malformed field is reported as a core.ErrValidation.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"billcal/internal/calendar"
	"billcal/internal/core"
)

const maxBodyBytes = 64 << 10

// ParseMonthQuery reads ?month=YYYY-MM. A missing or malformed value means
// the month containing now.
func ParseMonthQuery(query url.Values, now time.Time) calendar.Month {
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := calendar.ParseMonth(v); err == nil {
			return m
		}
	}
	return calendar.MonthOf(now)
}

// RequestBodyParser handles form-encoded bodies, as sent by HTMX, and JSON.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads the request body once, up to 64 KiB.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseBodyOrFail parses the body and returns an error response on failure.
func ParseBodyOrFail(p *RequestBodyParser) *HTMXResponseBuilder {
	if err := p.Parse(); err != nil {
		return BadRequestError("Malformed request body")
	}
	return nil
}

// ParseInstanceForm reads bill_id, month (YYYY-MM), due_date (YYYY-MM-DD),
// amount, paid and description.
func ParseInstanceForm(p *RequestBodyParser) (core.BillInstance, error) {
	var bi core.BillInstance

	billID, err := parseID(p.Get("bill_id"))
	if err != nil {
		return bi, fmt.Errorf("bill: %w", err)
	}
	month, err := time.Parse("2006-01", p.Get("month"))
	if err != nil {
		return bi, core.ErrInvalidMonth
	}
	due, err := parseDate(p.Get("due_date"))
	if err != nil {
		return bi, core.ErrInvalidDueDate
	}
	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		return bi, err
	}

	bi.BillID = billID
	bi.Month = core.DateOf(month)
	bi.DueDate = due
	bi.Amount = amount
	bi.Paid = parseBool(p.Get("paid"))
	bi.Description = p.Get("description")
	return bi, nil
}

// ParseProfileForm reads name, street, city and country. The country code
// is upper-cased.
func ParseProfileForm(p *RequestBodyParser) core.Profile {
	return core.Profile{
		Name:    p.Get("name"),
		Street:  p.Get("street"),
		City:    p.Get("city"),
		Country: strings.ToUpper(p.Get("country")),
	}
}

// parseBool accepts checkbox and toggle values.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}
