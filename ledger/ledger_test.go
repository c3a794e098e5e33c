package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lumen/budget-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func recordWith(advance string, billings ...string) *ledger.Record {
	rec := &ledger.Record{
		ID: "REC00001",
		Request: ledger.Request{
			Description: "spring campaign",
			Solicitor:   "ana",
			Unit:        "north",
		},
	}
	if advance != "" {
		rec.Advance = &ledger.Advance{Amount: money(advance), Unit: "north"}
	}
	for i, b := range billings {
		rec.Billings = append(rec.Billings, ledger.BillingEntry{
			ID:      ledger.NewToken(),
			Invoice: "NF-" + string(rune('A'+i)),
			Amount:  money(b),
		})
	}
	return rec
}

// =============================================================================
// CONSUMPTION TESTS
// =============================================================================

func TestCalculate_NoAdvance(t *testing.T) {
	// GIVEN: a record without an advance but with billings
	// THEN: advanced is 0 and the balance is 0 - billed

	rec := recordWith("", "150", "50")
	cons := ledger.Calculate(rec)

	assert.True(t, cons.Advanced.IsZero())
	assert.True(t, cons.Billed.Equal(money("200")))
	assert.True(t, cons.Balance.Equal(money("-200")))
	assert.Equal(t, ledger.StatusAwaitingAdvance, cons.Status())
}

func TestCalculate_AdvanceMinusBillings(t *testing.T) {
	rec := recordWith("1000", "400", "100")
	cons := ledger.Calculate(rec)

	assert.True(t, cons.Advanced.Equal(money("1000")))
	assert.True(t, cons.Billed.Equal(money("500")))
	assert.True(t, cons.Balance.Equal(money("500")))
	assert.Equal(t, ledger.StatusOpen, cons.Status())
}

func TestCalculate_NilRecord_ZeroTriple(t *testing.T) {
	// A missing record yields the zero triple, matching the lookup
	// sentinel, rather than an error.
	cons := ledger.Calculate(nil)

	assert.True(t, cons.Advanced.IsZero())
	assert.True(t, cons.Billed.IsZero())
	assert.True(t, cons.Balance.IsZero())
}

func TestCalculate_NegativeBalanceAllowed(t *testing.T) {
	// Over-billing is permitted in stored state; the balance just goes
	// negative and the record closes.
	rec := recordWith("100", "80", "70")
	cons := ledger.Calculate(rec)

	assert.True(t, cons.Balance.Equal(money("-50")))
	assert.Equal(t, ledger.StatusClosed, cons.Status())
}

// =============================================================================
// STATUS DERIVATION TESTS
// =============================================================================

func TestStatus_ZeroBalanceWithAdvance_Closed(t *testing.T) {
	// Tie-break: zero balance with a positive advance is closed.
	rec := recordWith("500", "500")
	assert.Equal(t, ledger.StatusClosed, ledger.StatusOf(rec))
}

func TestStatus_ZeroAdvance_AwaitingAdvance(t *testing.T) {
	// An advance of zero counts as no advance at all.
	rec := recordWith("0", "100")
	assert.Equal(t, ledger.StatusAwaitingAdvance, ledger.StatusOf(rec))
}

func TestStatus_PositiveBalance_Open(t *testing.T) {
	rec := recordWith("500", "100")
	assert.Equal(t, ledger.StatusOpen, ledger.StatusOf(rec))
}

func TestStatus_NoBillings(t *testing.T) {
	assert.Equal(t, ledger.StatusOpen, ledger.StatusOf(recordWith("500")))
	assert.Equal(t, ledger.StatusAwaitingAdvance, ledger.StatusOf(recordWith("")))
}

// =============================================================================
// TOKEN TESTS
// =============================================================================

func TestNewToken_Shape(t *testing.T) {
	for i := 0; i < 100; i++ {
		tok := ledger.NewToken()
		assert.Len(t, tok, 8)
		assert.Equal(t, tok, stringsUpper(tok))
	}
}

func TestNewTokenAvoiding_SkipsTaken(t *testing.T) {
	taken := map[string]bool{}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok := ledger.NewTokenAvoiding(taken)
		assert.False(t, taken[tok])
		taken[tok] = true
		seen[tok] = true
	}
	assert.Len(t, seen, 50)
}

func stringsUpper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 32
		}
	}
	return string(out)
}
