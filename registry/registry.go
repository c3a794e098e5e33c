/*
Package registry is the in-memory mirror of all records plus the store
orchestration around it.

PURPOSE:
  Replaces implicit per-session global state with an explicit
  repository object: Load() populates the mirror from the store,
  Invalidate() drops it, and every mutation goes through here. The
  engine packages stay pure; this is where state lives.

LOCAL-FIRST SEMANTICS:
  Every mutation updates the mirror first, then attempts the store
  write. A failed write does NOT roll the mirror back - it is reported
  as a *ledger.PersistenceError the caller surfaces as a notice. Local
  and persisted state may diverge on store failure; there is no
  reconciliation step. A nil store means a memory-only session (the
  startup fallback when storage is unreachable).

LIMIT ASYMMETRY:
  Only ProcessBatch enforces the advance limit. AddBilling and
  UpdateBilling permit over-billing, matching the original workflow's
  per-entry paths.

SEE ALSO:
  - ledger: pure calculation, batch planning, aggregation
  - ledger/store, store/sqlite: Store implementations
*/
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lumen/budget-engine/ledger"
)

// Registry holds the record mirror and coordinates persistence.
type Registry struct {
	mu      sync.RWMutex
	store   ledger.Store // nil = memory-only session
	records map[string]*ledger.Record
	loaded  bool
	log     logrus.FieldLogger
}

// New creates a registry over the given store. A nil store is valid
// and yields a memory-only session.
func New(st ledger.Store, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		store:   st,
		records: make(map[string]*ledger.Record),
		log:     log,
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Load populates the mirror from the store. With a nil store it just
// marks the session loaded. Loading replaces the mirror wholesale.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		r.loaded = true
		return nil
	}

	recs, err := r.store.FindAll(ctx)
	if err != nil {
		return err
	}
	r.records = make(map[string]*ledger.Record, len(recs))
	for i := range recs {
		r.records[recs[i].ID] = recs[i].Clone()
	}
	r.loaded = true
	return nil
}

// Invalidate drops the mirror; the next Load starts fresh.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*ledger.Record)
	r.loaded = false
}

// Loaded reports whether a Load completed since the last Invalidate.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// =============================================================================
// READS
// =============================================================================

// Get returns a deep copy of the record.
func (r *Registry) Get(id string) (*ledger.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Records returns deep copies of all records, ordered by creation time
// then ID so listings are deterministic.
func (r *Registry) Records() []*ledger.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ledger.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Consumption computes the triple for one record. A missing ID yields
// the zero triple and ErrRecordNotFound.
func (r *Registry) Consumption(id string) (ledger.Consumption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return ledger.Consumption{}, ledger.ErrRecordNotFound
	}
	return ledger.Calculate(rec), nil
}

// =============================================================================
// RECORD OPERATIONS
// =============================================================================

// CreateRecord creates a record around the given request and persists
// it. Returns the stored copy; a persistence failure comes back as a
// notice with the record already live in the mirror.
func (r *Registry) CreateRecord(ctx context.Context, req ledger.Request) (*ledger.Record, error) {
	r.mu.Lock()

	id := ledger.NewToken()
	for r.records[id] != nil {
		id = ledger.NewToken()
	}

	now := time.Now().UTC()
	rec := &ledger.Record{
		ID:        id,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.records[id] = rec
	snapshot := *rec.Clone()
	r.mu.Unlock()

	if err := r.persist("insert record", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.Insert(ctx, snapshot)
	}); err != nil {
		return snapshot.Clone(), err
	}
	return snapshot.Clone(), nil
}

// UpdateRequest replaces a record's request. An empty unit keeps the
// previously stored one.
func (r *Registry) UpdateRequest(ctx context.Context, id string, req ledger.Request) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ledger.ErrRecordNotFound
	}
	req.Unit = ledger.ResolveUnit(req.Unit, rec.Request.Unit)
	now := time.Now().UTC()
	rec.Request = req
	rec.UpdatedAt = now
	r.mu.Unlock()

	return r.persist("update request", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.UpdateRequest(ctx, id, req, now)
	})
}

// DeleteRecord removes the record and everything it owns.
func (r *Registry) DeleteRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.records[id]; !ok {
		r.mu.Unlock()
		return ledger.ErrRecordNotFound
	}
	delete(r.records, id)
	r.mu.Unlock()

	return r.persist("delete record", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.Delete(ctx, id)
	})
}

// =============================================================================
// ADVANCE OPERATIONS
// =============================================================================

// SetAdvance creates or replaces the record's advance. The unit
// defaults to the request's unit when not given.
func (r *Registry) SetAdvance(ctx context.Context, id string, adv ledger.Advance) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ledger.ErrRecordNotFound
	}
	adv.Unit = ledger.UnitForAdvance(rec, adv.Unit)
	now := time.Now().UTC()
	cp := adv
	rec.Advance = &cp
	rec.UpdatedAt = now
	r.mu.Unlock()

	return r.persist("update advance", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.UpdateAdvance(ctx, id, &adv, now)
	})
}

// RemoveAdvance clears the advance. Billing entries survive; the
// record's status reverts to awaiting_advance regardless of billings.
func (r *Registry) RemoveAdvance(ctx context.Context, id string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ledger.ErrRecordNotFound
	}
	if rec.Advance == nil {
		r.mu.Unlock()
		return ledger.ErrAdvanceNotFound
	}
	now := time.Now().UTC()
	rec.Advance = nil
	rec.UpdatedAt = now
	r.mu.Unlock()

	return r.persist("remove advance", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.UpdateAdvance(ctx, id, nil, now)
	})
}

// =============================================================================
// BILLING OPERATIONS - per-entry paths, no limit enforcement
// =============================================================================

// AddBilling appends a single entry. The unit is resolved once here
// (explicit > advance > request) and stored.
func (r *Registry) AddBilling(ctx context.Context, id string, entry ledger.BillingEntry) (*ledger.BillingEntry, error) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil, ledger.ErrRecordNotFound
	}

	taken := make(map[string]bool, len(rec.Billings))
	for _, e := range rec.Billings {
		taken[e.ID] = true
	}
	entry.ID = ledger.NewTokenAvoiding(taken)
	entry.Unit = ledger.UnitForBilling(rec, entry.Unit)

	now := time.Now().UTC()
	rec.Billings = append(rec.Billings, entry)
	rec.UpdatedAt = now
	r.mu.Unlock()

	stored := entry
	if err := r.persist("append billing", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.AppendBillings(ctx, id, []ledger.BillingEntry{entry}, now)
	}); err != nil {
		return &stored, err
	}
	return &stored, nil
}

// UpdateBilling edits an entry in place. An empty unit keeps the
// stored one; the entry never re-inherits from a later advance edit.
func (r *Registry) UpdateBilling(ctx context.Context, id string, entry ledger.BillingEntry) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ledger.ErrRecordNotFound
	}
	idx := -1
	for i := range rec.Billings {
		if rec.Billings[i].ID == entry.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ledger.ErrBillingNotFound
	}
	entry.Unit = ledger.UnitForBillingEdit(rec, rec.Billings[idx], entry.Unit)
	now := time.Now().UTC()
	rec.Billings[idx] = entry
	rec.UpdatedAt = now
	r.mu.Unlock()

	return r.persist("update billing", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.UpdateBilling(ctx, id, entry, now)
	})
}

// RemoveBilling deletes one entry from the list.
func (r *Registry) RemoveBilling(ctx context.Context, id string, entryID string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ledger.ErrRecordNotFound
	}
	idx := -1
	for i := range rec.Billings {
		if rec.Billings[i].ID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ledger.ErrBillingNotFound
	}
	now := time.Now().UTC()
	rec.Billings = append(rec.Billings[:idx], rec.Billings[idx+1:]...)
	rec.UpdatedAt = now
	r.mu.Unlock()

	return r.persist("remove billing", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.RemoveBilling(ctx, id, entryID, now)
	})
}

// =============================================================================
// BATCH RECONCILIATION
// =============================================================================

// ProcessBatch plans the batch against the record's balance and, when
// accepted, commits all candidates as one atomic append. The returned
// result is meaningful even when the error is a persistence notice:
// the entries are live in the mirror either way.
func (r *Registry) ProcessBatch(ctx context.Context, id string, rows []ledger.ProposedRow, allowOverride bool) (ledger.BatchResult, error) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ledger.BatchResult{Total: decimal.Zero}, ledger.ErrRecordNotFound
	}

	entries, result := ledger.PlanBatch(rec, rows, allowOverride)
	if len(entries) == 0 {
		r.mu.Unlock()
		return result, nil
	}

	now := time.Now().UTC()
	rec.Billings = append(rec.Billings, entries...)
	rec.UpdatedAt = now
	r.mu.Unlock()

	if err := r.persist("append billings", func() error {
		if r.store == nil {
			return nil
		}
		return r.store.AppendBillings(ctx, id, entries, now)
	}); err != nil {
		return result, err
	}
	return result, nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist runs a store write and converts failure into a logged
// notice. The mirror is already updated when this runs.
func (r *Registry) persist(op string, fn func() error) error {
	if err := fn(); err != nil {
		r.log.WithField("op", op).WithError(err).Warn("store write failed; keeping local state")
		return &ledger.PersistenceError{Op: op, Err: err}
	}
	return nil
}
