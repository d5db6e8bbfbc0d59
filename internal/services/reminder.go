package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"billcal/internal/core"
	"billcal/internal/datasource"
	"billcal/internal/notify"
)

// DefaultReminderWindow is how many days ahead unpaid bills are reported.
const DefaultReminderWindow = 3

// ReminderProcessor sends one digest of the unpaid instances that fall due
// within the window.
type ReminderProcessor struct {
	store    datasource.InstanceReader
	enricher *EventEnricher
	sender   notify.Sender
	window   int
}

func NewReminderProcessor(store datasource.InstanceReader, enricher *EventEnricher, sender notify.Sender, windowDays int) *ReminderProcessor {
	if windowDays <= 0 {
		windowDays = DefaultReminderWindow
	}
	return &ReminderProcessor{store: store, enricher: enricher, sender: sender, window: windowDays}
}

// Process returns the number of instances in the digest. No message is sent
// when nothing is due.
func (p *ReminderProcessor) Process(ctx context.Context, now time.Time) (int, error) {
	today := core.DateOf(now)
	due, err := p.dueInstances(ctx, today)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		slog.DebugContext(ctx, "No bills due soon", "window_days", p.window)
		return 0, nil
	}

	events, err := p.enricher.Enrich(ctx, due)
	if err != nil {
		return 0, fmt.Errorf("enrich due instances: %w", err)
	}

	if err := p.sender.Send(ctx, Digest(events, today)); err != nil {
		return 0, fmt.Errorf("send reminder: %w", err)
	}
	slog.InfoContext(ctx, "Reminder sent", "count", len(events))
	return len(events), nil
}

// dueInstances lists unpaid instances with today <= due date <= today+window,
// whatever their billing month.
func (p *ReminderProcessor) dueInstances(ctx context.Context, today core.Date) ([]core.BillInstance, error) {
	limit := core.DateOf(today.AddDate(0, 0, p.window))
	list, err := p.store.ListInstancesDue(ctx, today, limit)
	if err != nil {
		return nil, fmt.Errorf("list instances due %s..%s: %w", today, limit, err)
	}
	var out []core.BillInstance
	for _, bi := range list {
		if !bi.Paid {
			out = append(out, bi)
		}
	}
	return out, nil
}

// Digest renders the reminder message for events.
func Digest(events []core.CalendarEvent, today core.Date) notify.Message {
	noun := "bills"
	if len(events) == 1 {
		noun = "bill"
	}

	var total core.Money
	var b strings.Builder
	fmt.Fprintf(&b, "Unpaid bills as of %s:\n\n", today)
	for _, e := range events {
		total = total.Add(e.Amount)
		fmt.Fprintf(&b, "%s  %s (%s)  %s", e.DueDate, e.BillName, e.ProfileName, e.Amount.Format())
		if e.Description != "" {
			fmt.Fprintf(&b, "  %s", e.Description)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", total.Format())

	return notify.Message{
		Subject: fmt.Sprintf("%d %s due soon", len(events), noun),
		Text:    b.String(),
	}
}
