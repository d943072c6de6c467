// Package store holds the process-lifetime state of the service: the
// per-tenant event log and the idempotency ledger. Both are in-memory only;
// durability across restarts is out of scope.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackdoglabs/analytics-platform/internal/cursor"
	"github.com/blackdoglabs/analytics-platform/internal/models"
)

// Filter narrows a query scan. Zero-value fields match everything; Start and
// End are inclusive timestamp bounds.
type Filter struct {
	UserID    string
	EventType string
	Start     *time.Time
	End       *time.Time
}

func (f Filter) matches(ev models.EventRecord) bool {
	if f.UserID != "" && ev.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && ev.EventType != f.EventType {
		return false
	}
	if f.Start != nil && ev.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && ev.Timestamp.After(*f.End) {
		return false
	}
	return true
}

// tenantLog is one tenant's event sequence in append order. Its lock makes
// append and scan linearizable relative to each other: a scan never observes
// a partially appended batch.
type tenantLog struct {
	mu     sync.RWMutex
	events []models.EventRecord
}

// EventStore is the sole owner of all stored events. Collections are keyed
// first by tenant ID; no operation crosses tenants. Locking is per tenant so
// tenants do not serialize each other.
type EventStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantLog
}

// NewEventStore creates an empty store. One instance is constructed per
// process and injected into the request handlers; tests construct their own.
func NewEventStore() *EventStore {
	return &EventStore{tenants: map[string]*tenantLog{}}
}

func (s *EventStore) tenant(tenantID string) *tenantLog {
	s.mu.RLock()
	t := s.tenants[tenantID]
	s.mu.RUnlock()
	if t != nil {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t = s.tenants[tenantID]; t == nil {
		t = &tenantLog{}
		s.tenants[tenantID] = t
	}
	return t
}

// lookup returns the tenant's log without creating one, so read paths do not
// grow the tenant map.
func (s *EventStore) lookup(tenantID string) *tenantLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenants[tenantID]
}

// newRecord materializes an input into a stored record. Event IDs are UUIDv7:
// globally unique and time-ordered, so they double as a stable secondary sort
// key against the timestamp.
func newRecord(tenantID string, in models.EventInput) models.EventRecord {
	ts := time.Now().UTC()
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}
	props := in.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	return models.EventRecord{
		EventID:    uuid.Must(uuid.NewV7()).String(),
		TenantID:   tenantID,
		UserID:     in.UserID,
		EventType:  in.EventType,
		Properties: props,
		Timestamp:  ts,
	}
}

// Append stores a single event for the tenant and returns the stored record.
func (s *EventStore) Append(tenantID string, in models.EventInput) models.EventRecord {
	t := s.tenant(tenantID)
	rec := newRecord(tenantID, in)

	t.mu.Lock()
	t.events = append(t.events, rec)
	t.mu.Unlock()

	return rec
}

// AppendBatch stores a batch under a single tenant lock, so concurrent
// queries see either none or all of the batch.
func (s *EventStore) AppendBatch(tenantID string, batch []models.EventInput) []models.EventRecord {
	t := s.tenant(tenantID)
	recs := make([]models.EventRecord, 0, len(batch))
	for _, in := range batch {
		recs = append(recs, newRecord(tenantID, in))
	}

	t.mu.Lock()
	t.events = append(t.events, recs...)
	t.mu.Unlock()

	return recs
}

// Query scans the tenant's log, drops records at or before the cursor
// position, applies the filter, sorts newest-first (event ID descending on
// timestamp ties), and returns up to limit records plus a flag indicating
// whether any further record survived.
//
// Results are ordered newest-first, so "at or before the cursor" means at or
// newer than the last record the client received: a record is skipped when
// its event ID or its timestamp is at-or-newer than the cursor's. The dual
// condition is deliberately conservative; with store-assigned V7 IDs and
// server-assigned timestamps both keys agree and pages partition exactly.
func (s *EventStore) Query(tenantID string, f Filter, after *cursor.Position, limit int) ([]models.EventRecord, bool) {
	t := s.lookup(tenantID)
	if t == nil {
		return nil, false
	}

	t.mu.RLock()
	var survivors []models.EventRecord
	for _, ev := range t.events {
		if after != nil && (ev.EventID >= after.EventID || !ev.Timestamp.Before(after.Timestamp)) {
			continue
		}
		if !f.matches(ev) {
			continue
		}
		survivors = append(survivors, ev)
	}
	t.mu.RUnlock()

	sort.Slice(survivors, func(i, j int) bool {
		if !survivors[i].Timestamp.Equal(survivors[j].Timestamp) {
			return survivors[i].Timestamp.After(survivors[j].Timestamp)
		}
		return survivors[i].EventID > survivors[j].EventID
	})

	hasMore := len(survivors) > limit
	if hasMore {
		survivors = survivors[:limit]
	}
	return survivors, hasMore
}

// Range returns all of the tenant's events with timestamps in [start, end]
// inclusive, in append order. Used by the metrics aggregator.
func (s *EventStore) Range(tenantID string, start, end time.Time) []models.EventRecord {
	t := s.lookup(tenantID)
	if t == nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.EventRecord
	for _, ev := range t.events {
		if ev.Timestamp.Before(start) || ev.Timestamp.After(end) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
