// Package store provides an in-memory Store implementation.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/lumen/budget-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[string]*ledger.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*ledger.Record)}
}

func (m *Memory) Insert(_ context.Context, rec ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) FindAll(_ context.Context) ([]ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec.Clone())
	}
	return out, nil
}

func (m *Memory) UpdateRequest(_ context.Context, id string, req ledger.Request, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ledger.ErrRecordNotFound
	}
	rec.Request = req
	rec.UpdatedAt = updatedAt
	return nil
}

func (m *Memory) UpdateAdvance(_ context.Context, id string, adv *ledger.Advance, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ledger.ErrRecordNotFound
	}
	if adv == nil {
		rec.Advance = nil
	} else {
		cp := *adv
		rec.Advance = &cp
	}
	rec.UpdatedAt = updatedAt
	return nil
}

func (m *Memory) AppendBillings(_ context.Context, id string, entries []ledger.BillingEntry, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ledger.ErrRecordNotFound
	}
	rec.Billings = append(rec.Billings, entries...)
	rec.UpdatedAt = updatedAt
	return nil
}

func (m *Memory) UpdateBilling(_ context.Context, id string, entry ledger.BillingEntry, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ledger.ErrRecordNotFound
	}
	for i := range rec.Billings {
		if rec.Billings[i].ID == entry.ID {
			rec.Billings[i] = entry
			rec.UpdatedAt = updatedAt
			return nil
		}
	}
	return ledger.ErrBillingNotFound
}

func (m *Memory) RemoveBilling(_ context.Context, id string, entryID string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ledger.ErrRecordNotFound
	}
	for i := range rec.Billings {
		if rec.Billings[i].ID == entryID {
			rec.Billings = append(rec.Billings[:i], rec.Billings[i+1:]...)
			rec.UpdatedAt = updatedAt
			return nil
		}
	}
	return ledger.ErrBillingNotFound
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ledger.ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}
