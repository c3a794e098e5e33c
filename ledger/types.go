/*
Package ledger is the core engine for advertising-budget tracking.

PURPOSE:
  A Record tracks one budget request through its lifecycle: the request
  itself, the advance disbursed against it, and the billing entries that
  consume the advance. This package computes balances, classifies
  lifecycle status, reconciles batch billing inserts against the
  remaining balance, and folds records into portfolio aggregates.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: one budget request + its advance + its billing history
  - Request: the originating ask (who, what, how much estimated)
  - Advance: the disbursed amount billing entries draw against
  - BillingEntry: one invoice/charge consuming the advance
  - Status: derived lifecycle state (never stored)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary amount
  2. Derivation: balance and status are always computed, never stored
  3. Ownership: a Record owns its Request, Advance, and BillingEntries;
     deleting the Record deletes all of them

SEE ALSO:
  - ledger.go: balance calculation and status derivation
  - batch.go: batch billing reconciliation
  - aggregate.go: portfolio summaries and filtering
*/
package ledger

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD - The unit of tracking
// =============================================================================

// Record is one budget request plus its advance and billing history.
// Advance is nil until the advance workflow runs; it can be replaced or
// removed without touching the billing entries.
type Record struct {
	ID       string
	Request  Request
	Advance  *Advance
	Billings []BillingEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Request is the originating budget ask. Created with the record,
// mutable via edit.
type Request struct {
	Description string
	Solicitor   string
	Estimated   decimal.Decimal
	Date        Date
	Notes       string
	Unit        string
}

// Advance is the disbursed amount billing entries reconcile against.
type Advance struct {
	Amount      decimal.Decimal
	Date        Date
	Responsible string
	Note        string
	Unit        string
}

// BillingEntry is one invoice/charge drawn against a record's advance.
// Unit is resolved once at creation time and stored explicitly; editing
// the advance later does not retroactively change it.
type BillingEntry struct {
	ID          string
	Invoice     string
	Amount      decimal.Decimal
	Date        Date
	Description string
	Unit        string
}

// Clone returns a deep copy safe to hand to callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Advance != nil {
		adv := *r.Advance
		out.Advance = &adv
	}
	out.Billings = append([]BillingEntry(nil), r.Billings...)
	return &out
}

// Billing returns the entry with the given ID, or false if absent.
func (r *Record) Billing(entryID string) (BillingEntry, bool) {
	for _, e := range r.Billings {
		if e.ID == entryID {
			return e, true
		}
	}
	return BillingEntry{}, false
}

// =============================================================================
// STATUS - Derived lifecycle state
// =============================================================================

type Status string

const (
	// StatusAwaitingAdvance: no advance disbursed yet (or advance of zero).
	StatusAwaitingAdvance Status = "awaiting_advance"
	// StatusOpen: advance present and balance still positive.
	StatusOpen Status = "open"
	// StatusClosed: advance present and fully consumed (balance <= 0).
	StatusClosed Status = "closed"
)

// =============================================================================
// IDENTIFIERS - 8-char uppercase tokens
// =============================================================================

// NewToken returns an 8-character uppercase identifier derived from a
// random 128-bit UUID. Uniqueness is only required within a record's
// billing list, not globally; collisions there are retried by callers.
func NewToken() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:])[:8])
}

// NewTokenAvoiding generates a token not present in taken.
func NewTokenAvoiding(taken map[string]bool) string {
	for {
		id := NewToken()
		if !taken[id] {
			return id
		}
	}
}
