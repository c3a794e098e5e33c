/*
store.go - Persistence interface for records

PURPOSE:
  Defines the contract between the engine and whatever holds the data.
  The engine treats the store as a collaborator that either succeeds or
  reports; it never blocks a local state change on store success (see
  registry for the local-first semantics).

SHAPE:
  One document per record: identifier, nested request, nullable
  advance, ordered billing-entry list, created/updated timestamps.
  Mutations are partial by design - a request edit must not rewrite the
  billing list - so the interface exposes field-level updates and
  list append/remove instead of whole-document replacement. Every
  mutation carries the new UpdatedAt.

IMPLEMENTATIONS:
  - ledger/store: in-memory, for tests and store-less sessions
  - store/sqlite: SQLite-backed

SEE ALSO:
  - registry: the only caller; owns ordering and failure policy
*/
package ledger

import (
	"context"
	"time"
)

// Store persists records. Implementations must keep the billing list
// ordered as appended.
type Store interface {
	// Insert persists a brand-new record.
	Insert(ctx context.Context, rec Record) error

	// FindAll returns every stored record.
	FindAll(ctx context.Context) ([]Record, error)

	// UpdateRequest replaces the record's request fields.
	UpdateRequest(ctx context.Context, id string, req Request, updatedAt time.Time) error

	// UpdateAdvance replaces the record's advance; nil clears it.
	UpdateAdvance(ctx context.Context, id string, adv *Advance, updatedAt time.Time) error

	// AppendBillings appends entries to the billing list atomically:
	// all entries or none.
	AppendBillings(ctx context.Context, id string, entries []BillingEntry, updatedAt time.Time) error

	// UpdateBilling replaces the entry with entry.ID in place.
	UpdateBilling(ctx context.Context, id string, entry BillingEntry, updatedAt time.Time) error

	// RemoveBilling removes the entry with entryID from the list.
	RemoveBilling(ctx context.Context, id string, entryID string, updatedAt time.Time) error

	// Delete removes the record and everything it owns.
	Delete(ctx context.Context, id string) error
}
