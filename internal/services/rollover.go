package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"billcal/internal/calendar"
	"billcal/internal/core"
	"billcal/internal/datasource"
)

// RolloverProcessor carries every bill over into the current month by
// copying its previous-month instance.
type RolloverProcessor struct {
	store datasource.Store
	bills *BillService
}

func NewRolloverProcessor(store datasource.Store, bills *BillService) *RolloverProcessor {
	return &RolloverProcessor{store: store, bills: bills}
}

// Process creates this month's instance for each bill that has one for the
// previous month and none for the current month. Running it twice in the
// same month creates nothing the second time.
func (p *RolloverProcessor) Process(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.bills == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	current := core.DateOf(now).FirstOfMonth()
	previous := core.DateOf(current.AddDate(0, -1, 0))

	bills, err := p.store.ListAllBills(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bills: %w", err)
	}

	slog.InfoContext(ctx, "Processing bill rollover",
		"bills", len(bills),
		"month", current.Format("2006-01"))

	created := 0
	for _, b := range bills {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		instances, err := p.store.ListInstancesByBill(ctx, b.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list instances of bill",
				"bill_id", b.ID,
				"error", err)
			continue
		}

		source, ok := rolloverSource(instances, previous, current)
		if !ok {
			continue
		}

		next := core.BillInstance{
			BillID:      b.ID,
			Month:       current,
			DueDate:     NextDueDate(source.DueDate),
			Amount:      source.Amount,
			Paid:        false,
			Description: source.Description,
		}
		if _, err := p.bills.CreateBillInstance(ctx, next); err != nil {
			slog.ErrorContext(ctx, "Failed to roll bill over",
				"bill_id", b.ID,
				"bill", b.Name,
				"error", err)
			continue
		}

		created++
		slog.InfoContext(ctx, "Rolled bill over",
			"bill_id", b.ID,
			"bill", b.Name,
			"due_date", next.DueDate.String(),
			"amount", next.Amount.Plain())
	}

	slog.InfoContext(ctx, "Bill rollover complete",
		"created", created,
		"total_checked", len(bills))

	return created, nil
}

// rolloverSource picks the latest previous-month instance, unless the
// current month already has one.
func rolloverSource(instances []core.BillInstance, previous, current core.Date) (core.BillInstance, bool) {
	var (
		source core.BillInstance
		found  bool
	)
	for _, bi := range instances {
		switch {
		case bi.Month.SameDay(current):
			return core.BillInstance{}, false
		case bi.Month.SameDay(previous):
			if !found || bi.DueDate.After(source.DueDate.Time) {
				source = bi
				found = true
			}
		}
	}
	return source, found
}

// NextDueDate moves due one month forward, clamping the day to the length
// of the target month (31 January becomes 29 February in a leap year).
func NextDueDate(due core.Date) core.Date {
	first := time.Date(due.Year(), time.Month(due.Month())+1, 1, 0, 0, 0, 0, time.UTC)
	day := due.Day()
	if last := calendar.DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}
