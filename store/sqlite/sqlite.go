/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists records across sessions. The same patterns apply to any SQL
  backend - only dialect details differ.

KEY TABLES:
  records:         one row per record; request fields inline, advance
                   fields inline and nullable (has_advance disambiguates
                   a present advance of zero from no advance)
  billing_entries: ordered child rows; position preserves append order

AMOUNTS AND DATES:
  Monetary amounts are stored as decimal TEXT, never floats. Dates are
  stored in their canonical text form (which may be retained raw text
  for rows that never parsed - round-tripping keeps it intact).

WAL MODE:
  Opened with WAL and foreign keys on; deleting a record cascades to
  its billing entries at the database level too.

USAGE:
  st, err := sqlite.New("./data/budget.db")
  if err != nil { ... }
  defer st.Close()

SEE ALSO:
  - ledger/store.go: interface definition
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lumen/budget-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath. Use ":memory:" for
// an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		solicitor TEXT NOT NULL DEFAULT '',
		estimated TEXT NOT NULL DEFAULT '0',
		request_date TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		has_advance INTEGER NOT NULL DEFAULT 0,
		advance_amount TEXT,
		advance_date TEXT,
		advance_responsible TEXT,
		advance_note TEXT,
		advance_unit TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS billing_entries (
		record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		invoice TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0',
		entry_date TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (record_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_billing_entries_order
		ON billing_entries(record_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES
// =============================================================================

func (s *Store) Insert(ctx context.Context, rec ledger.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	adv := advanceColumns(rec.Advance)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (
			id, description, solicitor, estimated, request_date, notes, unit,
			has_advance, advance_amount, advance_date, advance_responsible,
			advance_note, advance_unit, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Request.Description, rec.Request.Solicitor,
		rec.Request.Estimated.String(), rec.Request.Date.String(),
		rec.Request.Notes, rec.Request.Unit,
		adv.has, adv.amount, adv.date, adv.responsible, adv.note, adv.unit,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	for i, e := range rec.Billings {
		if err := insertBilling(ctx, tx, rec.ID, i, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateRequest(ctx context.Context, id string, req ledger.Request, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET description = ?, solicitor = ?, estimated = ?,
			request_date = ?, notes = ?, unit = ?, updated_at = ?
		WHERE id = ?`,
		req.Description, req.Solicitor, req.Estimated.String(),
		req.Date.String(), req.Notes, req.Unit,
		updatedAt.UTC().Format(time.RFC3339Nano), id,
	)
	return requireRow(res, err)
}

func (s *Store) UpdateAdvance(ctx context.Context, id string, adv *ledger.Advance, updatedAt time.Time) error {
	cols := advanceColumns(adv)
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET has_advance = ?, advance_amount = ?, advance_date = ?,
			advance_responsible = ?, advance_note = ?, advance_unit = ?, updated_at = ?
		WHERE id = ?`,
		cols.has, cols.amount, cols.date, cols.responsible, cols.note, cols.unit,
		updatedAt.UTC().Format(time.RFC3339Nano), id,
	)
	return requireRow(res, err)
}

func (s *Store) AppendBillings(ctx context.Context, id string, entries []ledger.BillingEntry, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM billing_entries WHERE record_id = ?`, id,
	).Scan(&next)
	if err != nil {
		return err
	}

	for i, e := range entries {
		if err := insertBilling(ctx, tx, id, next+i, e); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE records SET updated_at = ? WHERE id = ?`,
		updatedAt.UTC().Format(time.RFC3339Nano), id)
	if err := requireRow(res, err); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateBilling(ctx context.Context, id string, entry ledger.BillingEntry, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE billing_entries SET invoice = ?, amount = ?, entry_date = ?,
			description = ?, unit = ?
		WHERE record_id = ? AND id = ?`,
		entry.Invoice, entry.Amount.String(), entry.Date.String(),
		entry.Description, entry.Unit, id, entry.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrBillingNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE records SET updated_at = ? WHERE id = ?`,
		updatedAt.UTC().Format(time.RFC3339Nano), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RemoveBilling(ctx context.Context, id string, entryID string, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM billing_entries WHERE record_id = ? AND id = ?`, id, entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrBillingNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE records SET updated_at = ? WHERE id = ?`,
		updatedAt.UTC().Format(time.RFC3339Nano), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return requireRow(res, err)
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) FindAll(ctx context.Context) ([]ledger.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, solicitor, estimated, request_date, notes, unit,
			has_advance, advance_amount, advance_date, advance_responsible,
			advance_note, advance_unit, created_at, updated_at
		FROM records ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		var (
			rec                         ledger.Record
			estimated, reqDate          string
			hasAdvance                  bool
			advAmount, advDate, advResp sql.NullString
			advNote, advUnit            sql.NullString
			createdAt, updatedAt        string
		)
		err := rows.Scan(
			&rec.ID, &rec.Request.Description, &rec.Request.Solicitor,
			&estimated, &reqDate, &rec.Request.Notes, &rec.Request.Unit,
			&hasAdvance, &advAmount, &advDate, &advResp, &advNote, &advUnit,
			&createdAt, &updatedAt,
		)
		if err != nil {
			return nil, err
		}

		rec.Request.Estimated = parseDecimal(estimated)
		rec.Request.Date = ledger.ParseDate(reqDate)
		if hasAdvance {
			rec.Advance = &ledger.Advance{
				Amount:      parseDecimal(advAmount.String),
				Date:        ledger.ParseDate(advDate.String),
				Responsible: advResp.String,
				Note:        advNote.String,
				Unit:        advUnit.String,
			}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

		billings, err := s.loadBillings(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Billings = billings
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) loadBillings(ctx context.Context, recordID string) ([]ledger.BillingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice, amount, entry_date, description, unit
		FROM billing_entries WHERE record_id = ? ORDER BY position`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.BillingEntry
	for rows.Next() {
		var (
			e             ledger.BillingEntry
			amount, eDate string
		)
		if err := rows.Scan(&e.ID, &e.Invoice, &amount, &eDate, &e.Description, &e.Unit); err != nil {
			return nil, err
		}
		e.Amount = parseDecimal(amount)
		e.Date = ledger.ParseDate(eDate)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type advanceCols struct {
	has                                   bool
	amount, date, responsible, note, unit sql.NullString
}

func advanceColumns(adv *ledger.Advance) advanceCols {
	if adv == nil {
		return advanceCols{}
	}
	return advanceCols{
		has:         true,
		amount:      sql.NullString{String: adv.Amount.String(), Valid: true},
		date:        sql.NullString{String: adv.Date.String(), Valid: true},
		responsible: sql.NullString{String: adv.Responsible, Valid: true},
		note:        sql.NullString{String: adv.Note, Valid: true},
		unit:        sql.NullString{String: adv.Unit, Valid: true},
	}
}

func insertBilling(ctx context.Context, tx *sql.Tx, recordID string, position int, e ledger.BillingEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO billing_entries (record_id, id, position, invoice, amount, entry_date, description, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		recordID, e.ID, position, e.Invoice, e.Amount.String(),
		e.Date.String(), e.Description, e.Unit,
	)
	return err
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrRecordNotFound
	}
	return nil
}
