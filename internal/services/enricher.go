// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"billcal/internal/core"
	"billcal/internal/datasource"
)

// DefaultEnrichConcurrency bounds the number of in-flight lookup chains.
const DefaultEnrichConcurrency = 8

// EventEnricher joins bill instances with their bill and profile.
type EventEnricher struct {
	lookup datasource.Lookup
	limit  int
}

func NewEventEnricher(lookup datasource.Lookup, limit int) *EventEnricher {
	if limit <= 0 {
		limit = DefaultEnrichConcurrency
	}
	return &EventEnricher{lookup: lookup, limit: limit}
}

// Enrich resolves every instance concurrently and returns the events in
// input order. The first failed lookup cancels the rest and Enrich returns
// a nil slice with that error; callers never see a partial batch.
func (e *EventEnricher) Enrich(ctx context.Context, instances []core.BillInstance) ([]core.CalendarEvent, error) {
	out := make([]core.CalendarEvent, len(instances))
	if len(instances) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, bi := range instances {
		i, bi := i, bi
		g.Go(func() error {
			ev, err := e.enrichOne(gctx, bi)
			if err != nil {
				return fmt.Errorf("enrich bill instance %d: %w", bi.ID, err)
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// enrichOne runs the bill then profile lookup chain for one instance.
func (e *EventEnricher) enrichOne(ctx context.Context, bi core.BillInstance) (core.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return core.CalendarEvent{}, err
	}
	bill, err := e.lookup.GetBill(ctx, bi.BillID)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	profile, err := e.lookup.GetProfile(ctx, bill.ProfileID)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	return core.NewCalendarEvent(bi, bill, profile), nil
}
