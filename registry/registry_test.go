package registry_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen/budget-engine/ledger"
	"github.com/lumen/budget-engine/ledger/store"
	"github.com/lumen/budget-engine/registry"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newMemoryRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(store.NewMemory(), quietLog())
	require.NoError(t, reg.Load(context.Background()))
	return reg
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// failingStore rejects every write; reads stay empty.
type failingStore struct{}

var errDown = errors.New("connection refused")

func (failingStore) Insert(context.Context, ledger.Record) error { return errDown }
func (failingStore) FindAll(context.Context) ([]ledger.Record, error) {
	return nil, nil
}
func (failingStore) UpdateRequest(context.Context, string, ledger.Request, time.Time) error {
	return errDown
}
func (failingStore) UpdateAdvance(context.Context, string, *ledger.Advance, time.Time) error {
	return errDown
}
func (failingStore) AppendBillings(context.Context, string, []ledger.BillingEntry, time.Time) error {
	return errDown
}
func (failingStore) UpdateBilling(context.Context, string, ledger.BillingEntry, time.Time) error {
	return errDown
}
func (failingStore) RemoveBilling(context.Context, string, string, time.Time) error {
	return errDown
}
func (failingStore) Delete(context.Context, string) error { return errDown }

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestLoad_PopulatesMirror(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Insert(ctx, ledger.Record{
		ID:      "SEEDED01",
		Request: ledger.Request{Description: "carryover", Solicitor: "ana"},
	}))

	reg := registry.New(mem, quietLog())
	require.NoError(t, reg.Load(ctx))

	assert.True(t, reg.Loaded())
	rec, err := reg.Get("SEEDED01")
	require.NoError(t, err)
	assert.Equal(t, "carryover", rec.Request.Description)
}

func TestInvalidate_DropsMirror(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	created, err := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, err)

	reg.Invalidate()
	assert.False(t, reg.Loaded())
	_, err = reg.Get(created.ID)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)

	// Reload pulls the persisted copy back.
	require.NoError(t, reg.Load(ctx))
	_, err = reg.Get(created.ID)
	assert.NoError(t, err)
}

func TestNilStore_MemoryOnlySession(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(nil, quietLog())
	require.NoError(t, reg.Load(ctx))

	rec, err := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, err)
	require.NotNil(t, rec)

	got, err := reg.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Request.Description)
}

// =============================================================================
// LOCAL-FIRST PERSISTENCE TESTS
// =============================================================================

func TestCreateRecord_StoreFailure_KeepsLocalState(t *testing.T) {
	// GIVEN: a store that rejects every write
	// WHEN: creating a record
	// THEN: the record is live in the mirror and the error is a
	//       persistence notice, not a failure

	ctx := context.Background()
	reg := registry.New(failingStore{}, quietLog())
	require.NoError(t, reg.Load(ctx))

	rec, err := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NotNil(t, rec)
	assert.True(t, ledger.IsPersistence(err))

	got, gerr := reg.Get(rec.ID)
	require.NoError(t, gerr)
	assert.Equal(t, "x", got.Request.Description)
}

func TestProcessBatch_StoreFailure_EntriesStayLocal(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(failingStore{}, quietLog())
	require.NoError(t, reg.Load(ctx))

	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	err := reg.SetAdvance(ctx, rec.ID, ledger.Advance{Amount: money("1000")})
	assert.True(t, ledger.IsPersistence(err))

	result, err := reg.ProcessBatch(ctx, rec.ID, []ledger.ProposedRow{
		{Amount: "300", Invoice: "NF-1"},
	}, false)
	assert.True(t, ledger.IsPersistence(err))
	assert.Equal(t, 1, result.Inserted)

	got, _ := reg.Get(rec.ID)
	require.Len(t, got.Billings, 1)
}

// =============================================================================
// RECORD OPERATION TESTS
// =============================================================================

func TestCreateRecord_AssignsTokenAndTimestamps(t *testing.T) {
	reg := newMemoryRegistry(t)
	rec, err := reg.CreateRecord(context.Background(), ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, err)

	assert.Len(t, rec.ID, 8)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}

func TestUpdateRequest_EmptyUnitKeepsExisting(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana", Unit: "north"})

	require.NoError(t, reg.UpdateRequest(ctx, rec.ID, ledger.Request{Description: "y", Solicitor: "bruno"}))

	got, _ := reg.Get(rec.ID)
	assert.Equal(t, "y", got.Request.Description)
	assert.Equal(t, "north", got.Request.Unit)
}

func TestDeleteRecord_CascadesBillings(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	_, err := reg.AddBilling(ctx, rec.ID, ledger.BillingEntry{Invoice: "NF-1", Amount: money("100")})
	require.NoError(t, err)

	require.NoError(t, reg.DeleteRecord(ctx, rec.ID))
	_, err = reg.Get(rec.ID)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestRecords_SortedByCreation(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	a, _ := reg.CreateRecord(ctx, ledger.Request{Description: "first", Solicitor: "ana"})
	b, _ := reg.CreateRecord(ctx, ledger.Request{Description: "second", Solicitor: "ana"})

	all := reg.Records()
	require.Len(t, all, 2)
	ids := []string{all[0].ID, all[1].ID}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)
	assert.False(t, all[1].CreatedAt.Before(all[0].CreatedAt))
}

// =============================================================================
// ADVANCE TESTS
// =============================================================================

func TestSetAdvance_InheritsRequestUnit(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana", Unit: "north"})

	require.NoError(t, reg.SetAdvance(ctx, rec.ID, ledger.Advance{Amount: money("1000")}))

	got, _ := reg.Get(rec.ID)
	require.NotNil(t, got.Advance)
	assert.Equal(t, "north", got.Advance.Unit)
	assert.Equal(t, ledger.StatusOpen, ledger.StatusOf(got))
}

func TestRemoveAdvance_RevertsToAwaiting(t *testing.T) {
	// Removing the advance keeps the billing entries; only the status
	// reverts.
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, reg.SetAdvance(ctx, rec.ID, ledger.Advance{Amount: money("1000")}))
	_, err := reg.AddBilling(ctx, rec.ID, ledger.BillingEntry{Invoice: "NF-1", Amount: money("100")})
	require.NoError(t, err)

	require.NoError(t, reg.RemoveAdvance(ctx, rec.ID))

	got, _ := reg.Get(rec.ID)
	assert.Nil(t, got.Advance)
	require.Len(t, got.Billings, 1)
	assert.Equal(t, ledger.StatusAwaitingAdvance, ledger.StatusOf(got))
}

func TestRemoveAdvance_NoneSet(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})

	assert.ErrorIs(t, reg.RemoveAdvance(ctx, rec.ID), ledger.ErrAdvanceNotFound)
}

// =============================================================================
// BILLING TESTS
// =============================================================================

func TestAddBilling_NoLimitEnforcement(t *testing.T) {
	// The single-entry path permits over-billing; only the batch path
	// checks the balance.
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, reg.SetAdvance(ctx, rec.ID, ledger.Advance{Amount: money("100")}))

	entry, err := reg.AddBilling(ctx, rec.ID, ledger.BillingEntry{Invoice: "NF-1", Amount: money("500")})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, entry.ID, 8)

	cons, _ := reg.Consumption(rec.ID)
	assert.True(t, cons.Balance.Equal(money("-400")))
}

func TestUpdateBilling_EmptyUnitKeepsStored(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana", Unit: "north"})
	entry, err := reg.AddBilling(ctx, rec.ID, ledger.BillingEntry{Invoice: "NF-1", Amount: money("100"), Unit: "west"})
	require.NoError(t, err)

	edited := *entry
	edited.Invoice = "NF-1-FIXED"
	edited.Unit = ""
	require.NoError(t, reg.UpdateBilling(ctx, rec.ID, edited))

	got, _ := reg.Get(rec.ID)
	require.Len(t, got.Billings, 1)
	assert.Equal(t, "NF-1-FIXED", got.Billings[0].Invoice)
	assert.Equal(t, "west", got.Billings[0].Unit)
}

func TestRemoveBilling(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	entry, _ := reg.AddBilling(ctx, rec.ID, ledger.BillingEntry{Invoice: "NF-1", Amount: money("100")})

	require.NoError(t, reg.RemoveBilling(ctx, rec.ID, entry.ID))
	got, _ := reg.Get(rec.ID)
	assert.Empty(t, got.Billings)

	assert.ErrorIs(t, reg.RemoveBilling(ctx, rec.ID, entry.ID), ledger.ErrBillingNotFound)
}

// =============================================================================
// BATCH TESTS
// =============================================================================

func TestProcessBatch_CommitAndStatusFlip(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, reg.SetAdvance(ctx, rec.ID, ledger.Advance{Amount: money("1000")}))

	result, err := reg.ProcessBatch(ctx, rec.ID, []ledger.ProposedRow{
		{Amount: "600", Invoice: "NF-1"},
		{Amount: "400", Invoice: "NF-2"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.False(t, result.Exceeded)

	got, _ := reg.Get(rec.ID)
	assert.Equal(t, ledger.StatusClosed, ledger.StatusOf(got))
}

func TestProcessBatch_RejectedLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, reg.SetAdvance(ctx, rec.ID, ledger.Advance{Amount: money("100")}))

	result, err := reg.ProcessBatch(ctx, rec.ID, []ledger.ProposedRow{
		{Amount: "500", Invoice: "NF-1"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.True(t, result.Exceeded)

	got, _ := reg.Get(rec.ID)
	assert.Empty(t, got.Billings)
}

func TestProcessBatch_TwiceInsertsDuplicatesWithDistinctIDs(t *testing.T) {
	// Batches never dedupe: submitting the same rows twice doubles the
	// billed total, each entry under its own ID.
	ctx := context.Background()
	reg := newMemoryRegistry(t)
	rec, _ := reg.CreateRecord(ctx, ledger.Request{Description: "x", Solicitor: "ana"})
	require.NoError(t, reg.SetAdvance(ctx, rec.ID, ledger.Advance{Amount: money("1000")}))

	rows := []ledger.ProposedRow{{Amount: "200", Invoice: "NF-1"}}
	_, err := reg.ProcessBatch(ctx, rec.ID, rows, false)
	require.NoError(t, err)
	_, err = reg.ProcessBatch(ctx, rec.ID, rows, false)
	require.NoError(t, err)

	got, _ := reg.Get(rec.ID)
	require.Len(t, got.Billings, 2)
	assert.NotEqual(t, got.Billings[0].ID, got.Billings[1].ID)

	cons, _ := reg.Consumption(rec.ID)
	assert.True(t, cons.Billed.Equal(money("400")))
}

func TestProcessBatch_UnknownRecord(t *testing.T) {
	reg := newMemoryRegistry(t)
	_, err := reg.ProcessBatch(context.Background(), "NOPE", []ledger.ProposedRow{
		{Amount: "100", Invoice: "NF-1"},
	}, false)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}
