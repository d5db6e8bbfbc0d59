package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"billcal/internal/amqp"
	"billcal/internal/core"
	"billcal/internal/datasource"
	"billcal/internal/services"
)

// Mirror is the write side of the spreadsheet mirror.
type Mirror interface {
	UpsertEvent(ctx context.Context, ev core.CalendarEvent) error
	DeleteEvent(ctx context.Context, id int64) error
}

// SheetsSyncWorker mirrors bill instance changes into a spreadsheet.
type SheetsSyncWorker struct {
	store    datasource.InstanceReader
	enricher *services.EventEnricher
	mirror   Mirror
}

func NewSheetsSyncWorker(store datasource.InstanceReader, enricher *services.EventEnricher, mirror Mirror) *SheetsSyncWorker {
	return &SheetsSyncWorker{
		store:    store,
		enricher: enricher,
		mirror:   mirror,
	}
}

// Handle processes one change message from AMQP. Returning an error makes
// the consumer requeue the message.
func (w *SheetsSyncWorker) Handle(ctx context.Context, msg *amqp.InstanceChangeMessage) error {
	slog.InfoContext(ctx, "Processing instance change",
		"id", msg.ID,
		"op", msg.Op,
		"month", msg.Month)

	switch msg.Op {
	case amqp.OpDelete:
		if err := w.mirror.DeleteEvent(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete instance %d from mirror: %w", msg.ID, err)
		}
		return nil
	case amqp.OpUpsert:
		return w.upsert(ctx, msg.ID)
	default:
		slog.WarnContext(ctx, "Ignoring unknown op", "op", msg.Op, "id", msg.ID)
		return nil
	}
}

func (w *SheetsSyncWorker) upsert(ctx context.Context, id int64) error {
	bi, err := w.store.GetBillInstance(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the message was published; make sure the row is gone too.
		slog.InfoContext(ctx, "Instance no longer exists, removing from mirror", "id", id)
		return w.mirror.DeleteEvent(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get instance %d: %w", id, err)
	}

	events, err := w.enricher.Enrich(ctx, []core.BillInstance{bi})
	if err != nil {
		return err
	}
	if err := w.mirror.UpsertEvent(ctx, events[0]); err != nil {
		return fmt.Errorf("upsert instance %d into mirror: %w", id, err)
	}

	slog.InfoContext(ctx, "Mirrored instance", "id", id, "bill", events[0].BillName)
	return nil
}

// ResyncMonth rewrites every instance of month into the mirror. It is the
// backup path for messages lost while the worker was down.
func (w *SheetsSyncWorker) ResyncMonth(ctx context.Context, month core.Date) (int, error) {
	instances, err := w.store.ListInstances(ctx, month.FirstOfMonth())
	if err != nil {
		return 0, fmt.Errorf("list instances: %w", err)
	}
	events, err := w.enricher.Enrich(ctx, instances)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, ev := range events {
		if err := w.mirror.UpsertEvent(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror instance", "id", ev.ID, "error", err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Month resync complete",
		"month", month.Format("2006-01"),
		"synced", synced,
		"total", len(events))
	return synced, nil
}
