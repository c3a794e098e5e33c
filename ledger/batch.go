/*
batch.go - Batch billing reconciliation

PURPOSE:
  Validates and commits a set of proposed billing rows against a
  record's remaining balance. This is the only path that enforces the
  advance limit; single-entry create/edit paths deliberately do not
  (preserved asymmetry from the original workflow).

PIPELINE:
  1. Normalize every row independently, order-preserving:
     - amount parsed leniently (unparsable or missing -> 0)
     - invoice/description trimmed
     - date normalized to canonical text (missing -> empty)
  2. Accept a row iff amount > 0 AND (invoice or description non-empty).
     Rejected rows are silently dropped, never partially inserted.
  3. No survivors: short-circuit with "No valid rows to insert" -
     no limit check, no mutation.
  4. Limit check against the balance BEFORE this batch. A batch only
     "exceeds" when an advance exists; with no advance the limit is
     meaningless and the flag is forced false.
  5. Exceeding without override rejects the whole batch. Otherwise ALL
     candidates commit atomically as one append. Exceeded can be true
     on a successful override commit - it reports "this went over", not
     "this failed".

  All-or-nothing: either every accepted row is inserted or none are.
  Retrying the same rows inserts a second independent set with fresh
  IDs; there is no dedup.

SEE ALSO:
  - registry: ProcessBatch applies the plan to the mirror and the store
*/
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROPOSED ROWS - Loose, spreadsheet-shaped input
// =============================================================================

// ProposedRow is one raw billing line as submitted. All fields are
// text on purpose: rows come from bulk forms and pasted sheets, and
// normalization (not the transport) decides what counts as valid.
type ProposedRow struct {
	Invoice     string
	Description string
	Amount      string
	Date        string
}

// BatchResult summarizes a reconciliation attempt.
type BatchResult struct {
	Inserted int
	Total    decimal.Decimal
	Exceeded bool
	Message  string
}

// =============================================================================
// PLANNING - Pure: decides, does not mutate
// =============================================================================

// PlanBatch normalizes rows and decides the outcome against rec's
// current balance. It returns the entries to append (nil when the
// batch is rejected or empty) and the result to report. The caller
// owns the actual append.
func PlanBatch(rec *Record, rows []ProposedRow, allowOverride bool) ([]BillingEntry, BatchResult) {
	candidates := normalizeRows(rec, rows)

	if len(candidates) == 0 {
		return nil, BatchResult{Total: decimal.Zero, Message: "No valid rows to insert"}
	}

	total := decimal.Zero
	for _, e := range candidates {
		total = total.Add(e.Amount)
	}

	cons := Calculate(rec)
	exceeds := cons.Advanced.Sign() > 0 && total.GreaterThan(cons.Balance)

	if exceeds && !allowOverride {
		return nil, BatchResult{
			Total:    total,
			Exceeded: true,
			Message: fmt.Sprintf(
				"Batch total (%s) exceeds remaining balance (%s); enable the override flag to insert anyway",
				total.StringFixed(2), cons.Balance.StringFixed(2)),
		}
	}

	return candidates, BatchResult{
		Inserted: len(candidates),
		Total:    total,
		Exceeded: exceeds,
		Message:  "Billing entries inserted successfully",
	}
}

// normalizeRows applies per-row normalization and the acceptance
// predicate, assigning each survivor an ID unique within the record's
// billing list (and within the batch itself).
func normalizeRows(rec *Record, rows []ProposedRow) []BillingEntry {
	taken := make(map[string]bool)
	if rec != nil {
		for _, e := range rec.Billings {
			taken[e.ID] = true
		}
	}

	var out []BillingEntry
	for _, row := range rows {
		amount := parseAmount(row.Amount)
		invoice := strings.TrimSpace(row.Invoice)
		desc := strings.TrimSpace(row.Description)

		if amount.Sign() <= 0 || (invoice == "" && desc == "") {
			continue
		}

		id := NewTokenAvoiding(taken)
		taken[id] = true
		out = append(out, BillingEntry{
			ID:          id,
			Invoice:     invoice,
			Amount:      amount,
			Date:        ParseDate(row.Date),
			Description: desc,
			Unit:        UnitForBilling(rec, ""),
		})
	}
	return out
}

// parseAmount is deliberately lenient: anything that does not parse as
// a number counts as zero and gets dropped by the predicate.
func parseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
