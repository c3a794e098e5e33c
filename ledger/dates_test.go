package ledger_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen/budget-engine/ledger"
)

func TestParseDate_CanonicalForm(t *testing.T) {
	d := ledger.ParseDate("2026-03-10")
	assert.True(t, d.Valid())
	assert.Equal(t, "2026-03-10", d.String())
}

func TestParseDate_RFC3339KeepsDatePart(t *testing.T) {
	d := ledger.ParseDate("2026-03-10T14:30:00Z")
	assert.True(t, d.Valid())
	assert.Equal(t, "2026-03-10", d.String())
}

func TestParseDate_EmptyIsMissing(t *testing.T) {
	d := ledger.ParseDate("   ")
	assert.True(t, d.IsZero())
	assert.False(t, d.Valid())
	assert.Equal(t, "", d.String())
}

func TestParseDate_UnparsableRetainsRaw(t *testing.T) {
	// Bad text is kept verbatim rather than dropped; only Valid flips.
	d := ledger.ParseDate("10/03/2026")
	assert.False(t, d.Valid())
	assert.False(t, d.IsZero())
	assert.Equal(t, "10/03/2026", d.String())
}

func TestDateOf_TruncatesToDay(t *testing.T) {
	d := ledger.DateOf(time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, "2026-03-10", d.String())
}

func TestDate_Comparisons(t *testing.T) {
	a := ledger.ParseDate("2026-03-10")
	b := ledger.ParseDate("2026-03-11")

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.OnOrAfter(a))
	assert.True(t, a.OnOrBefore(a))
	assert.False(t, a.OnOrAfter(b))
}

func TestDate_JSONRoundTrip(t *testing.T) {
	type payload struct {
		Due ledger.Date `json:"due"`
	}

	out, err := json.Marshal(payload{Due: ledger.ParseDate("2026-03-10")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2026-03-10"}`, string(out))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2026-03-10T00:00:00Z"}`), &in))
	assert.Equal(t, "2026-03-10", in.Due.String())

	require.NoError(t, json.Unmarshal([]byte(`{"due":"whenever"}`), &in))
	assert.False(t, in.Due.Valid())
	assert.Equal(t, "whenever", in.Due.String())
}
