/*
catalog.go - Selectable option lists for form fields

PURPOSE:
  The organization configures its business units, solicitors, and
  disbursement responsibles; records may additionally carry values that
  predate the current configuration. The options endpoint merges both:
  values found in records come first, then any configured defaults not
  yet seen. When the configured list already covers everything found,
  it is returned as-is in its configured order.
*/
package api

import (
	"os"
	"strings"

	"github.com/lumen/budget-engine/ledger"
)

// Catalog holds the configured default option lists.
type Catalog struct {
	Units        []string
	Solicitors   []string
	Responsibles []string
}

// CatalogFromEnv reads comma-separated lists from BUDGET_UNITS,
// BUDGET_SOLICITORS, and BUDGET_RESPONSIBLES.
func CatalogFromEnv() Catalog {
	return Catalog{
		Units:        splitList(os.Getenv("BUDGET_UNITS")),
		Solicitors:   splitList(os.Getenv("BUDGET_SOLICITORS")),
		Responsibles: splitList(os.Getenv("BUDGET_RESPONSIBLES")),
	}
}

// Options merges the catalog with values present in the records.
func (c Catalog) Options(records []*ledger.Record) OptionsDTO {
	var units, solicitors, responsibles []string
	for _, rec := range records {
		if u := rec.Request.Unit; u != "" {
			units = append(units, u)
		}
		if s := rec.Request.Solicitor; s != "" {
			solicitors = append(solicitors, s)
		}
		if rec.Advance != nil && rec.Advance.Responsible != "" {
			responsibles = append(responsibles, rec.Advance.Responsible)
		}
	}
	return OptionsDTO{
		Units:        mergeOptions(units, c.Units),
		Solicitors:   mergeOptions(solicitors, c.Solicitors),
		Responsibles: mergeOptions(responsibles, c.Responsibles),
		Statuses: []string{
			string(ledger.StatusAwaitingAdvance),
			string(ledger.StatusOpen),
			string(ledger.StatusClosed),
		},
	}
}

// mergeOptions returns defaults as-is when they cover every found
// value; otherwise found values first (deduped, in order) then the
// remaining defaults.
func mergeOptions(found, defaults []string) []string {
	inDefaults := make(map[string]bool, len(defaults))
	for _, d := range defaults {
		inDefaults[d] = true
	}

	covered := true
	for _, f := range found {
		if !inDefaults[f] {
			covered = false
			break
		}
	}
	if covered {
		return append([]string(nil), defaults...)
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(found)+len(defaults))
	for _, v := range append(append([]string(nil), found...), defaults...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
