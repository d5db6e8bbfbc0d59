package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	// Profile is a billing household or location.
	Profile struct {
		ID      int64
		Name    string
		Street  string
		City    string
		Country string // ISO 3166-1 alpha-2
	}

	// Bill is a recurring obligation owned by exactly one profile.
	Bill struct {
		ID        int64
		ProfileID int64
		Name      string
	}

	// BillInstance is one billing period's occurrence of a Bill.
	BillInstance struct {
		ID          int64
		BillID      int64
		Month       Date // always the first day of the month
		DueDate     Date
		Amount      Money
		Paid        bool
		Description string
	}

	// CalendarEvent is the render-only projection of a BillInstance joined
	// with its Bill and Profile. It is never written back.
	CalendarEvent struct {
		ID          int64
		BillID      int64
		ProfileID   int64
		Month       Date
		DueDate     Date
		BillName    string
		ProfileName string
		Amount      Money
		Paid        bool
		Description string
	}
)

var (
	ErrEmptyName       = fmt.Errorf("%w: empty name", ErrValidation)
	ErrEmptyStreet     = fmt.Errorf("%w: empty street", ErrValidation)
	ErrEmptyCity       = fmt.Errorf("%w: empty city", ErrValidation)
	ErrInvalidCountry  = fmt.Errorf("%w: country must be a two-letter code", ErrValidation)
	ErrMissingProfile  = fmt.Errorf("%w: missing profile", ErrValidation)
	ErrMissingBill     = fmt.Errorf("%w: missing bill", ErrValidation)
	ErrInvalidMonth    = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidDueDate  = fmt.Errorf("%w: invalid due date", ErrValidation)
	ErrDescriptionLong = fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	errZeroDate        = errors.New("date cannot be zero")
)

const maxDescriptionRunes = 200

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping the year/month/day as seen in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errZeroDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// SameDay reports whether both dates fall on the same calendar day.
func (d Date) SameDay(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month() && d.Day() == o.Day()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.Street) == "" {
		return ErrEmptyStreet
	}
	if strings.TrimSpace(p.City) == "" {
		return ErrEmptyCity
	}
	c := strings.TrimSpace(p.Country)
	if len(c) != 2 {
		return ErrInvalidCountry
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCountry
		}
	}
	return nil
}

func (b Bill) Validate() error {
	if b.ProfileID <= 0 {
		return ErrMissingProfile
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (bi BillInstance) Validate() error {
	if bi.BillID <= 0 {
		return ErrMissingBill
	}
	if err := bi.Month.Validate(); err != nil || bi.Month.Day() != 1 {
		return ErrInvalidMonth
	}
	if err := bi.DueDate.Validate(); err != nil {
		return ErrInvalidDueDate
	}
	if err := bi.Amount.Validate(); err != nil {
		return err
	}
	if len([]rune(bi.Description)) > maxDescriptionRunes {
		return ErrDescriptionLong
	}
	return nil
}

// NewCalendarEvent joins an instance with its bill and the bill's profile.
func NewCalendarEvent(bi BillInstance, b Bill, p Profile) CalendarEvent {
	return CalendarEvent{
		ID:          bi.ID,
		BillID:      b.ID,
		ProfileID:   p.ID,
		Month:       bi.Month,
		DueDate:     bi.DueDate,
		BillName:    b.Name,
		ProfileName: p.Name,
		Amount:      bi.Amount,
		Paid:        bi.Paid,
		Description: bi.Description,
	}
}
