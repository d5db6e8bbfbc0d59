// Package cache holds the in-process caches used by the services.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"billcal/internal/core"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// TTLCache is a Cache backed by go-cache. Expired entries are swept by
// go-cache's janitor every cleanup interval.
type TTLCache[T any] struct {
	c *gocache.Cache
}

func NewTTLCache[T any](ttl, cleanup time.Duration) *TTLCache[T] {
	return &TTLCache[T]{c: gocache.New(ttl, cleanup)}
}

func (t *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := t.c.Get(key)
	if !ok {
		return zero, false
	}
	data, ok := v.(T)
	if !ok {
		return zero, false
	}
	return data, true
}

func (t *TTLCache[T]) Set(key string, data T) {
	t.c.Set(key, data, gocache.DefaultExpiration)
}

func (t *TTLCache[T]) Delete(key string) {
	t.c.Delete(key)
}

func (t *TTLCache[T]) Size() int {
	return t.c.ItemCount()
}

// Flush drops every entry.
func (t *TTLCache[T]) Flush() {
	t.c.Flush()
}

// MonthEvents caches enriched calendar events per month. Every Invalidate
// and Flush bumps a generation; Set only stores events loaded under the
// current generation, so a load racing with a mutation never re-caches
// stale data.
type MonthEvents struct {
	c *TTLCache[[]core.CalendarEvent]

	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

func NewMonthEvents(ttl time.Duration) *MonthEvents {
	cleanup := ttl * 2
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MonthEvents{
		c:    NewTTLCache[[]core.CalendarEvent](ttl, cleanup),
		gens: make(map[string]uint64),
	}
}

func monthKey(month core.Date) string {
	return month.Format("2006-01")
}

// Get returns a copy of the cached events for month's calendar month.
func (m *MonthEvents) Get(month core.Date) ([]core.CalendarEvent, bool) {
	events, ok := m.c.Get(monthKey(month))
	if !ok {
		return nil, false
	}
	return append([]core.CalendarEvent(nil), events...), true
}

// Generation returns the token to pass to Set for a load of month started now.
func (m *MonthEvents) Generation(month core.Date) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch + m.gens[monthKey(month)]
}

// Set stores events unless month was invalidated after gen was taken.
// It reports whether the events were stored.
func (m *MonthEvents) Set(month core.Date, events []core.CalendarEvent, gen uint64) bool {
	key := monthKey(month)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch+m.gens[key] != gen {
		return false
	}
	m.c.Set(key, append([]core.CalendarEvent(nil), events...))
	return true
}

// Invalidate drops the cached events of month.
func (m *MonthEvents) Invalidate(month core.Date) {
	key := monthKey(month)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[key]++
	m.c.Delete(key)
}

// Flush drops every month, used when a profile change touches
// events of unknown months.
func (m *MonthEvents) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.c.Flush()
}

func (m *MonthEvents) Size() int {
	return m.c.Size()
}
