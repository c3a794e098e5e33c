/*
ledger.go - Balance calculation and status derivation

PURPOSE:
  Answers "how much of the advance is left?" for a single record.
  Balance is a pure function of the record's current state; there is no
  stored balance field that can drift out of sync.

CALCULATION:
  Advanced = Advance.Amount if an advance exists, else 0
  Billed   = sum of all billing-entry amounts
  Balance  = Advanced - Billed   (may go negative; over-billing is only
             guarded at the batch-insert boundary, see batch.go)

STATUS:
  awaiting_advance  if Advanced <= 0 (an advance of zero counts as none)
  closed            if Advanced > 0 and Balance <= 0
  open              otherwise

  Tie-break: zero balance with a positive advance is closed, not open.

SEE ALSO:
  - batch.go: the only place the balance acts as a limit
  - aggregate.go: folds per-record consumption into portfolio totals
*/
package ledger

import "github.com/shopspring/decimal"

// Consumption is the computed (advanced, billed, balance) triple for
// one record.
type Consumption struct {
	Advanced decimal.Decimal
	Billed   decimal.Decimal
	Balance  decimal.Decimal
}

// Calculate computes the consumption triple. A nil record yields the
// zero triple, matching the sentinel returned by lookups on a missing
// ID rather than failing.
func Calculate(rec *Record) Consumption {
	if rec == nil {
		return Consumption{}
	}

	advanced := decimal.Zero
	if rec.Advance != nil {
		advanced = rec.Advance.Amount
	}

	billed := decimal.Zero
	for _, e := range rec.Billings {
		billed = billed.Add(e.Amount)
	}

	return Consumption{
		Advanced: advanced,
		Billed:   billed,
		Balance:  advanced.Sub(billed),
	}
}

// Status derives the lifecycle state from the triple.
func (c Consumption) Status() Status {
	if c.Advanced.Sign() <= 0 {
		return StatusAwaitingAdvance
	}
	if c.Balance.Sign() <= 0 {
		return StatusClosed
	}
	return StatusOpen
}

// StatusOf is a convenience for callers holding only the record.
func StatusOf(rec *Record) Status {
	return Calculate(rec).Status()
}
