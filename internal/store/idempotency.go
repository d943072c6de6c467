package store

import "sync"

// IngestResult is the outcome recorded against an idempotency key after a
// successful ingestion. Kept so a replay-on-duplicate variant could be added
// without reshaping the ledger; the current contract rejects duplicates.
type IngestResult struct {
	Accepted int
	TenantID string
}

// ledgerKey is always the (tenant, client key) composite. Two tenants may
// coincidentally choose the same client key; their entries must not collide.
type ledgerKey struct {
	tenantID  string
	clientKey string
}

// IdempotencyLedger maps client-supplied idempotency keys to their ingestion
// results. Entries never expire; unbounded growth over a long process
// lifetime is a known limitation of this contract.
type IdempotencyLedger struct {
	mu      sync.Mutex
	entries map[ledgerKey]*IngestResult
}

// NewIdempotencyLedger creates an empty ledger.
func NewIdempotencyLedger() *IdempotencyLedger {
	return &IdempotencyLedger{entries: map[ledgerKey]*IngestResult{}}
}

// Seen reports whether the key has already been reserved or recorded for the
// tenant. Read-only; used to surface a conflict before request validation.
func (l *IdempotencyLedger) Seen(tenantID, clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[ledgerKey{tenantID, clientKey}]
	return ok
}

// Reserve atomically claims the key for the tenant. It returns true exactly
// once per key: of two concurrent requests carrying the same key, only one
// proceeds.
func (l *IdempotencyLedger) Reserve(tenantID, clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := ledgerKey{tenantID, clientKey}
	if _, ok := l.entries[k]; ok {
		return false
	}
	l.entries[k] = nil
	return true
}

// Record stores the result for a previously reserved key.
func (l *IdempotencyLedger) Record(tenantID, clientKey string, res IngestResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ledgerKey{tenantID, clientKey}] = &res
}

// Result returns the recorded outcome for a key, if ingestion completed.
func (l *IdempotencyLedger) Result(tenantID, clientKey string) (IngestResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := l.entries[ledgerKey{tenantID, clientKey}]
	if res == nil {
		return IngestResult{}, false
	}
	return *res, true
}
