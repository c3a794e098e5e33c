/*
unit.go - Business-unit resolution

PURPOSE:
  A business-unit tag propagates with default inheritance across
  Request -> Advance -> BillingEntry. The original chained "or"
  fallbacks are replaced here by an explicit priority-ordered resolver
  so the precedence is documented and testable on its own.

PRECEDENCE (first non-empty wins):
  Advance creation:      explicit > request unit
  Billing creation:      explicit > advance unit > request unit
  Billing edit:          explicit > stored entry unit > advance unit > request unit

  Once a billing entry's unit is stored it never changes implicitly;
  editing the advance later does not rewrite existing entries.
*/
package ledger

import "strings"

// ResolveUnit returns the first candidate that is non-empty after
// trimming, or "" when all are empty.
func ResolveUnit(candidates ...string) string {
	for _, c := range candidates {
		if u := strings.TrimSpace(c); u != "" {
			return u
		}
	}
	return ""
}

// UnitForAdvance resolves the unit for a new or replaced advance.
func UnitForAdvance(rec *Record, explicit string) string {
	if rec == nil {
		return ResolveUnit(explicit)
	}
	return ResolveUnit(explicit, rec.Request.Unit)
}

// UnitForBilling resolves the unit stored on a freshly created billing
// entry.
func UnitForBilling(rec *Record, explicit string) string {
	if rec == nil {
		return ResolveUnit(explicit)
	}
	advUnit := ""
	if rec.Advance != nil {
		advUnit = rec.Advance.Unit
	}
	return ResolveUnit(explicit, advUnit, rec.Request.Unit)
}

// UnitForBillingEdit resolves the unit when an existing entry is
// edited: an empty explicit value keeps the stored unit.
func UnitForBillingEdit(rec *Record, existing BillingEntry, explicit string) string {
	if rec == nil {
		return ResolveUnit(explicit, existing.Unit)
	}
	advUnit := ""
	if rec.Advance != nil {
		advUnit = rec.Advance.Unit
	}
	return ResolveUnit(explicit, existing.Unit, advUnit, rec.Request.Unit)
}
