package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"billcal/internal/core"
	"billcal/internal/notify"
)

type fakeSender struct {
	sent []notify.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg notify.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestReminderSelectsDueUnpaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	add := func(y, m, d int, paid bool, desc string) {
		t.Helper()
		if _, err := f.svc.CreateBillInstance(ctx, core.BillInstance{
			BillID:      f.power.ID,
			Month:       core.NewDate(y, m, 1),
			DueDate:     core.NewDate(y, m, d),
			Amount:      core.MustMoney("10"),
			Paid:        paid,
			Description: desc,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	add(2024, 10, 29, false, "yesterday")
	add(2024, 10, 30, false, "today")
	add(2024, 10, 31, true, "settled")
	add(2024, 11, 1, false, "next month")
	add(2024, 11, 2, false, "window edge")
	add(2024, 11, 3, false, "beyond")

	sender := &fakeSender{}
	p := NewReminderProcessor(f.store, f.svc.Enricher(), sender, 3)
	n, err := p.Process(ctx, time.Date(2024, 10, 30, 8, 0, 0, 0, time.UTC))
	if err != nil || n != 3 {
		t.Fatalf("expected three due instances, got %d err=%v", n, err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one digest, got %d", len(sender.sent))
	}
	text := sender.sent[0].Text
	for _, want := range []string{"today", "next month", "window edge", "Electricity (Home)", "Total: 30.00 €"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
	for _, unwanted := range []string{"yesterday", "settled", "beyond"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("digest should not contain %q:\n%s", unwanted, text)
		}
	}
	if sender.sent[0].Subject != "3 bills due soon" {
		t.Errorf("unexpected subject %q", sender.sent[0].Subject)
	}
}

func TestReminderUsesDueDateNotBillingMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Billed for September, due in October.
	if _, err := f.svc.CreateBillInstance(ctx, core.BillInstance{
		BillID:      f.power.ID,
		Month:       core.NewDate(2024, 9, 1),
		DueDate:     core.NewDate(2024, 10, 18),
		Amount:      core.MustMoney("42.50"),
		Description: "september usage",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sender := &fakeSender{}
	n, err := NewReminderProcessor(f.store, f.svc.Enricher(), sender, 3).
		Process(ctx, time.Date(2024, 10, 16, 8, 0, 0, 0, time.UTC))
	if err != nil || n != 1 {
		t.Fatalf("expected the instance in the digest, got n=%d err=%v", n, err)
	}
	if !strings.Contains(sender.sent[0].Text, "september usage") {
		t.Errorf("digest missing instance:\n%s", sender.sent[0].Text)
	}
}

func TestReminderNothingDue(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{}
	n, err := NewReminderProcessor(f.store, f.svc.Enricher(), sender, 0).Process(context.Background(), time.Now())
	if err != nil || n != 0 || len(sender.sent) != 0 {
		t.Fatalf("expected no digest, got n=%d sent=%d err=%v", n, len(sender.sent), err)
	}
}

func TestReminderSendFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateBillInstance(ctx, f.october(2, "5")); err != nil {
		t.Fatalf("create: %v", err)
	}
	sender := &fakeSender{err: core.Remote("mailgun send", errors.New("401"))}
	if _, err := NewReminderProcessor(f.store, f.svc.Enricher(), sender, 3).Process(ctx, now); !errors.Is(err, core.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestDigestSingular(t *testing.T) {
	msg := Digest([]core.CalendarEvent{{
		BillName:    "Gas",
		ProfileName: "Flat",
		DueDate:     core.NewDate(2024, 10, 15),
		Amount:      core.MustMoney("1234.5"),
	}}, core.NewDate(2024, 10, 14))
	if msg.Subject != "1 bill due soon" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "2024-10-15  Gas (Flat)  1,234.50 €") {
		t.Fatalf("unexpected text %q", msg.Text)
	}
}
