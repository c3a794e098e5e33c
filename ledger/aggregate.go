/*
aggregate.go - Portfolio aggregation and filtering

PURPOSE:
  Folds per-record balances into dashboard-level summaries: one row per
  record plus portfolio totals across the filtered set.

AGGREGATE BALANCE:
  Totals.Balance = sum(advanced) - sum(billed), recomputed from the two
  independent sums rather than summing per-record balances. The numbers
  coincide mathematically; recomputing keeps the aggregate anchored to
  the same two figures the dashboard displays.

DATE FILTERING:
  The request-date range is inclusive on both ends and only active when
  both bounds are valid dates. What happens to a record whose date is
  missing or never parsed is a named policy on the filter, defaulting
  to ExcludeUnparsed: dropped under an active range, kept otherwise.
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// SUMMARY ROWS AND TOTALS
// =============================================================================

// SummaryRow is one dashboard line for a record.
type SummaryRow struct {
	RecordID    string
	Solicitor   string
	Description string
	Unit        string
	Advanced    decimal.Decimal
	Billed      decimal.Decimal
	Balance     decimal.Decimal
	Status      Status
}

// Totals are portfolio-level figures across a record collection.
type Totals struct {
	Records  int
	Advanced decimal.Decimal
	Billed   decimal.Decimal
	Balance  decimal.Decimal
}

// Summarize produces one row per record, preserving input order.
func Summarize(records []*Record) []SummaryRow {
	rows := make([]SummaryRow, 0, len(records))
	for _, rec := range records {
		cons := Calculate(rec)
		rows = append(rows, SummaryRow{
			RecordID:    rec.ID,
			Solicitor:   rec.Request.Solicitor,
			Description: rec.Request.Description,
			Unit:        rec.Request.Unit,
			Advanced:    cons.Advanced,
			Billed:      cons.Billed,
			Balance:     cons.Balance,
			Status:      cons.Status(),
		})
	}
	return rows
}

// Total computes portfolio totals. Balance is recomputed from the two
// sums, not accumulated from per-record balances.
func Total(records []*Record) Totals {
	t := Totals{
		Records:  len(records),
		Advanced: decimal.Zero,
		Billed:   decimal.Zero,
	}
	for _, rec := range records {
		cons := Calculate(rec)
		t.Advanced = t.Advanced.Add(cons.Advanced)
		t.Billed = t.Billed.Add(cons.Billed)
	}
	t.Balance = t.Advanced.Sub(t.Billed)
	return t
}

// =============================================================================
// FILTERING
// =============================================================================

// UnparsedDatePolicy names how an active date range treats records
// whose request date is missing or failed to parse.
type UnparsedDatePolicy int

const (
	// ExcludeUnparsed drops such records when a date range is active.
	ExcludeUnparsed UnparsedDatePolicy = iota
	// IncludeUnparsed keeps them even under an active range.
	IncludeUnparsed
)

// Filter selects records by set membership and request-date range.
// Empty sets match everything. The date range is active only when both
// From and To are valid; it is inclusive on both ends.
type Filter struct {
	Units      []string
	Solicitors []string
	Statuses   []Status
	From       Date
	To         Date
	Unparsed   UnparsedDatePolicy
}

// Apply returns the records matching the filter, preserving order.
func (f Filter) Apply(records []*Record) []*Record {
	units := toSet(f.Units)
	solicitors := toSet(f.Solicitors)
	statuses := make(map[Status]bool, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses[s] = true
	}
	rangeActive := f.From.Valid() && f.To.Valid()

	var out []*Record
	for _, rec := range records {
		if len(units) > 0 && !units[rec.Request.Unit] {
			continue
		}
		if len(solicitors) > 0 && !solicitors[rec.Request.Solicitor] {
			continue
		}
		if len(statuses) > 0 && !statuses[StatusOf(rec)] {
			continue
		}
		if rangeActive {
			d := rec.Request.Date
			if !d.Valid() {
				if f.Unparsed == ExcludeUnparsed {
					continue
				}
			} else if !(d.OnOrAfter(f.From) && d.OnOrBefore(f.To)) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = true
		}
	}
	return set
}
