package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"billcal/internal/amqp"
	"billcal/internal/core"
	"billcal/internal/datasource"
)

// ChangePublisher announces instance changes to other processes.
type ChangePublisher interface {
	PublishInstanceChange(ctx context.Context, msg *amqp.InstanceChangeMessage) error
}

// MonthCache stores enriched events per month.
type MonthCache interface {
	Get(month core.Date) ([]core.CalendarEvent, bool)
	// Generation is taken before a load; Set drops the events when the
	// month was invalidated since.
	Generation(month core.Date) uint64
	Set(month core.Date, events []core.CalendarEvent, gen uint64) bool
	Invalidate(month core.Date)
	Flush()
}

// BillService orchestrates the form operations: validation, persistence,
// cache invalidation and change publication.
type BillService struct {
	store     datasource.Store
	enricher  *EventEnricher
	publisher ChangePublisher
	cache     MonthCache
}

// NewBillService wires the service. publisher and cache may be nil.
func NewBillService(store datasource.Store, enricher *EventEnricher, publisher ChangePublisher, cache MonthCache) *BillService {
	if enricher == nil {
		enricher = NewEventEnricher(store, DefaultEnrichConcurrency)
	}
	return &BillService{
		store:     store,
		enricher:  enricher,
		publisher: publisher,
		cache:     cache,
	}
}

// Enricher exposes the service's enricher to the workers.
func (s *BillService) Enricher() *EventEnricher {
	return s.enricher
}

// MonthEvents returns the enriched events due in month, served from the
// cache when possible. Instances are selected by due date, not by billing
// month, so every instance shows up on the grid of the month it falls due.
func (s *BillService) MonthEvents(ctx context.Context, month core.Date) ([]core.CalendarEvent, error) {
	month = month.FirstOfMonth()
	var gen uint64
	if s.cache != nil {
		if events, ok := s.cache.Get(month); ok {
			return events, nil
		}
		gen = s.cache.Generation(month)
	}

	last := core.DateOf(month.AddDate(0, 1, -1))
	instances, err := s.store.ListInstancesDue(ctx, month, last)
	if err != nil {
		return nil, fmt.Errorf("list instances due in %s: %w", monthKeyOf(month), err)
	}
	events, err := s.enricher.Enrich(ctx, instances)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !s.cache.Set(month, events, gen) {
		slog.DebugContext(ctx, "Month changed while loading, not caching", "month", monthKeyOf(month))
	}
	return events, nil
}

// Profiles

func (s *BillService) ListProfiles(ctx context.Context) ([]core.Profile, error) {
	return s.store.ListProfiles(ctx)
}

func (s *BillService) GetProfile(ctx context.Context, id int64) (core.Profile, error) {
	return s.store.GetProfile(ctx, id)
}

func (s *BillService) CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	created, err := s.store.CreateProfile(ctx, p)
	if err != nil {
		return core.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	slog.InfoContext(ctx, "Profile created", "id", created.ID, "name", created.Name)
	return created, nil
}

// UpdateProfile renames or moves a profile. Cached events carry the
// profile name, so the whole cache is dropped.
func (s *BillService) UpdateProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return fmt.Errorf("update profile %d: %w", p.ID, err)
	}
	s.flush()
	s.publishAll(ctx, s.instancesOfProfile(ctx, p.ID), amqp.OpUpsert)
	return nil
}

// DeleteProfile removes a profile with its bills and instances.
func (s *BillService) DeleteProfile(ctx context.Context, id int64) error {
	affected := s.instancesOfProfile(ctx, id)
	if err := s.store.DeleteProfile(ctx, id); err != nil {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	s.flush()
	s.publishAll(ctx, affected, amqp.OpDelete)
	slog.InfoContext(ctx, "Profile deleted", "id", id, "instances", len(affected))
	return nil
}

// Bills

func (s *BillService) ListBills(ctx context.Context, profileID int64) ([]core.Bill, error) {
	return s.store.ListBills(ctx, profileID)
}

// ListAllBills returns every profile's bills, for the instance form select.
func (s *BillService) ListAllBills(ctx context.Context) ([]core.Bill, error) {
	return s.store.ListAllBills(ctx)
}

func (s *BillService) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	created, err := s.store.CreateBill(ctx, b)
	if err != nil {
		return core.Bill{}, fmt.Errorf("create bill: %w", err)
	}
	slog.InfoContext(ctx, "Bill created", "id", created.ID, "profile_id", created.ProfileID, "name", created.Name)
	return created, nil
}

func (s *BillService) DeleteBill(ctx context.Context, id int64) error {
	affected, err := s.store.ListInstancesByBill(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Failed to list instances of deleted bill", "bill_id", id, "error", err)
	}
	if err := s.store.DeleteBill(ctx, id); err != nil {
		return fmt.Errorf("delete bill %d: %w", id, err)
	}
	for _, bi := range affected {
		s.invalidate(bi)
	}
	s.publishAll(ctx, affected, amqp.OpDelete)
	return nil
}

// Bill instances

func (s *BillService) ListInstances(ctx context.Context, month core.Date) ([]core.BillInstance, error) {
	return s.store.ListInstances(ctx, month.FirstOfMonth())
}

func (s *BillService) GetInstance(ctx context.Context, id int64) (core.BillInstance, error) {
	return s.store.GetBillInstance(ctx, id)
}

// CreateBillInstance validates and stores a new instance. The bill must exist.
func (s *BillService) CreateBillInstance(ctx context.Context, bi core.BillInstance) (core.BillInstance, error) {
	if err := bi.Validate(); err != nil {
		return core.BillInstance{}, err
	}
	if _, err := s.store.GetBill(ctx, bi.BillID); err != nil {
		return core.BillInstance{}, err
	}
	created, err := s.store.CreateBillInstance(ctx, bi)
	if err != nil {
		return core.BillInstance{}, fmt.Errorf("create bill instance: %w", err)
	}
	s.invalidate(created)
	s.publish(ctx, created.ID, amqp.OpUpsert, created.Month)
	slog.InfoContext(ctx, "Bill instance created",
		"id", created.ID,
		"bill_id", created.BillID,
		"month", created.Month.String(),
		"amount", created.Amount.Plain())
	return created, nil
}

func (s *BillService) UpdateBillInstance(ctx context.Context, bi core.BillInstance) error {
	if err := bi.Validate(); err != nil {
		return err
	}
	old, err := s.store.GetBillInstance(ctx, bi.ID)
	if err != nil {
		return err
	}
	if _, err := s.store.GetBill(ctx, bi.BillID); err != nil {
		return err
	}
	if err := s.store.UpdateBillInstance(ctx, bi); err != nil {
		return fmt.Errorf("update bill instance %d: %w", bi.ID, err)
	}
	s.invalidate(old)
	s.invalidate(bi)
	s.publish(ctx, bi.ID, amqp.OpUpsert, bi.Month)
	return nil
}

// SetPaid toggles the paid flag of an instance.
func (s *BillService) SetPaid(ctx context.Context, id int64, paid bool) (core.BillInstance, error) {
	bi, err := s.store.GetBillInstance(ctx, id)
	if err != nil {
		return core.BillInstance{}, err
	}
	if err := s.store.SetInstancePaid(ctx, id, paid); err != nil {
		return core.BillInstance{}, fmt.Errorf("set paid on %d: %w", id, err)
	}
	bi.Paid = paid
	s.invalidate(bi)
	s.publish(ctx, id, amqp.OpUpsert, bi.Month)
	return bi, nil
}

func (s *BillService) DeleteBillInstance(ctx context.Context, id int64) error {
	bi, err := s.store.GetBillInstance(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBillInstance(ctx, id); err != nil {
		return fmt.Errorf("delete bill instance %d: %w", id, err)
	}
	s.invalidate(bi)
	s.publish(ctx, id, amqp.OpDelete, bi.Month)
	return nil
}

// DefaultInstanceForm returns the prefill of the create form: the previous
// month and a due date of today.
func (s *BillService) DefaultInstanceForm(now time.Time) core.BillInstance {
	today := core.DateOf(now)
	return core.BillInstance{
		Month:   core.DateOf(today.FirstOfMonth().AddDate(0, -1, 0)),
		DueDate: today,
		Amount:  core.MustMoney("0"),
	}
}

func (s *BillService) instancesOfProfile(ctx context.Context, profileID int64) []core.BillInstance {
	bills, err := s.store.ListBills(ctx, profileID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to list bills of profile", "profile_id", profileID, "error", err)
		return nil
	}
	var out []core.BillInstance
	for _, b := range bills {
		list, err := s.store.ListInstancesByBill(ctx, b.ID)
		if err != nil {
			slog.WarnContext(ctx, "Failed to list instances of bill", "bill_id", b.ID, "error", err)
			continue
		}
		out = append(out, list...)
	}
	return out
}

// invalidate drops the cached months an instance can appear in: the month
// it falls due and its billing month.
func (s *BillService) invalidate(bi core.BillInstance) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(bi.DueDate.FirstOfMonth())
	if !bi.Month.FirstOfMonth().SameDay(bi.DueDate.FirstOfMonth()) {
		s.cache.Invalidate(bi.Month.FirstOfMonth())
	}
}

func monthKeyOf(month core.Date) string {
	return month.Format("2006-01")
}

func (s *BillService) flush() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func (s *BillService) publishAll(ctx context.Context, instances []core.BillInstance, op string) {
	for _, bi := range instances {
		s.publish(ctx, bi.ID, op, bi.Month)
	}
}

// publish never fails the request: the local write already succeeded.
func (s *BillService) publish(ctx context.Context, id int64, op string, month core.Date) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInstanceChange(ctx, amqp.NewInstanceChangeMessage(id, op, month)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish instance change",
			"id", id,
			"op", op,
			"error", err)
	}
}
