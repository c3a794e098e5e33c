/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the wire contract. Monetary amounts travel as decimal strings in
  both directions; batch row amounts are deliberately raw so that a
  malformed amount in one pasted row degrades to zero (and gets
  dropped by normalization) instead of failing the whole request.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

NOTICES:
  Mutation responses carry an optional "notice" field: the change is
  applied in memory but a store write failed (see registry local-first
  semantics). Clients display it; nothing was rolled back.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lumen/budget-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RequestDTO is the request portion of a record.
type RequestDTO struct {
	Description string          `json:"description"`
	Solicitor   string          `json:"solicitor"`
	Estimated   decimal.Decimal `json:"estimated"`
	Date        string          `json:"date"`
	Notes       string          `json:"notes,omitempty"`
	Unit        string          `json:"unit,omitempty"`
}

// AdvanceDTO is the advance portion of a record.
type AdvanceDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Responsible string          `json:"responsible,omitempty"`
	Note        string          `json:"note,omitempty"`
	Unit        string          `json:"unit,omitempty"`
}

// BillingDTO is one billing entry.
type BillingDTO struct {
	ID          string          `json:"id"`
	Invoice     string          `json:"invoice"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	Notice      string          `json:"notice,omitempty"`
}

// RecordDTO is a full record with its derived figures.
type RecordDTO struct {
	ID        string          `json:"id"`
	Request   RequestDTO      `json:"request"`
	Advance   *AdvanceDTO     `json:"advance,omitempty"`
	Billings  []BillingDTO    `json:"billings"`
	Advanced  decimal.Decimal `json:"advanced"`
	Billed    decimal.Decimal `json:"billed"`
	Balance   decimal.Decimal `json:"balance"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
	Notice    string          `json:"notice,omitempty"`
}

// UpsertRecordRequest creates or edits a record's request.
type UpsertRecordRequest struct {
	Description string          `json:"description" validate:"required"`
	Solicitor   string          `json:"solicitor" validate:"required"`
	Estimated   decimal.Decimal `json:"estimated"`
	Date        string          `json:"date"`
	Notes       string          `json:"notes"`
	Unit        string          `json:"unit"`
}

// SetAdvanceRequest creates or replaces a record's advance.
type SetAdvanceRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Responsible string          `json:"responsible"`
	Note        string          `json:"note"`
	Unit        string          `json:"unit"`
}

// CreateBillingRequest adds or edits a single billing entry.
type CreateBillingRequest struct {
	Invoice     string          `json:"invoice"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
}

// BatchRowDTO is one raw batch line. Amount is raw JSON on purpose:
// numbers, quoted strings, or garbage all pass through to lenient
// normalization.
type BatchRowDTO struct {
	Invoice     string          `json:"invoice"`
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Date        string          `json:"date"`
}

// BatchRequest submits billing rows for batch reconciliation.
type BatchRequest struct {
	Rows          []BatchRowDTO `json:"rows"`
	AllowOverride bool          `json:"allow_override"`
}

// BatchResultDTO reports the reconciliation outcome.
type BatchResultDTO struct {
	Inserted int             `json:"inserted"`
	Total    decimal.Decimal `json:"total"`
	Exceeded bool            `json:"exceeded"`
	Message  string          `json:"message"`
	Notice   string          `json:"notice,omitempty"`
}

// ConsumptionDTO is the (advanced, billed, balance) triple plus the
// derived status.
type ConsumptionDTO struct {
	Advanced decimal.Decimal `json:"advanced"`
	Billed   decimal.Decimal `json:"billed"`
	Balance  decimal.Decimal `json:"balance"`
	Status   string          `json:"status"`
}

// SummaryRowDTO is one dashboard line.
type SummaryRowDTO struct {
	RecordID    string          `json:"record_id"`
	Solicitor   string          `json:"solicitor"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Advanced    decimal.Decimal `json:"advanced"`
	Billed      decimal.Decimal `json:"billed"`
	Balance     decimal.Decimal `json:"balance"`
	Status      string          `json:"status"`
}

// TotalsDTO is the portfolio totals block.
type TotalsDTO struct {
	Records  int             `json:"records"`
	Advanced decimal.Decimal `json:"advanced"`
	Billed   decimal.Decimal `json:"billed"`
	Balance  decimal.Decimal `json:"balance"`
}

// DashboardDTO is the filtered dashboard payload.
type DashboardDTO struct {
	Totals TotalsDTO       `json:"totals"`
	Rows   []SummaryRowDTO `json:"rows"`
}

// AdvanceReportRowDTO is one line of the advances report.
type AdvanceReportRowDTO struct {
	RecordID    string          `json:"record_id"`
	Solicitor   string          `json:"solicitor"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Responsible string          `json:"responsible"`
}

// BillingReportRowDTO is one line of the billings report. Unit is the
// resolved display unit (entry > advance > request).
type BillingReportRowDTO struct {
	RecordID    string          `json:"record_id"`
	Unit        string          `json:"unit"`
	Invoice     string          `json:"invoice"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
}

// OptionsDTO lists selectable values for form fields.
type OptionsDTO struct {
	Units        []string `json:"units"`
	Solicitors   []string `json:"solicitors"`
	Responsibles []string `json:"responsibles"`
	Statuses     []string `json:"statuses"`
}

// StatusResponse acknowledges a mutation without a payload.
type StatusResponse struct {
	Status string `json:"status"`
	Notice string `json:"notice,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRecordDTO(rec *ledger.Record) RecordDTO {
	cons := ledger.Calculate(rec)
	dto := RecordDTO{
		ID: rec.ID,
		Request: RequestDTO{
			Description: rec.Request.Description,
			Solicitor:   rec.Request.Solicitor,
			Estimated:   rec.Request.Estimated,
			Date:        rec.Request.Date.String(),
			Notes:       rec.Request.Notes,
			Unit:        rec.Request.Unit,
		},
		Billings:  make([]BillingDTO, 0, len(rec.Billings)),
		Advanced:  cons.Advanced,
		Billed:    cons.Billed,
		Balance:   cons.Balance,
		Status:    string(cons.Status()),
		CreatedAt: timeText(rec.CreatedAt),
		UpdatedAt: timeText(rec.UpdatedAt),
	}
	if rec.Advance != nil {
		dto.Advance = &AdvanceDTO{
			Amount:      rec.Advance.Amount,
			Date:        rec.Advance.Date.String(),
			Responsible: rec.Advance.Responsible,
			Note:        rec.Advance.Note,
			Unit:        rec.Advance.Unit,
		}
	}
	for _, e := range rec.Billings {
		dto.Billings = append(dto.Billings, toBillingDTO(e))
	}
	return dto
}

func toBillingDTO(e ledger.BillingEntry) BillingDTO {
	return BillingDTO{
		ID:          e.ID,
		Invoice:     e.Invoice,
		Amount:      e.Amount,
		Date:        e.Date.String(),
		Description: e.Description,
		Unit:        e.Unit,
	}
}

func toProposedRows(rows []BatchRowDTO) []ledger.ProposedRow {
	out := make([]ledger.ProposedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledger.ProposedRow{
			Invoice:     row.Invoice,
			Description: row.Description,
			Amount:      rawAmountText(row.Amount),
			Date:        row.Date,
		})
	}
	return out
}

// rawAmountText extracts the textual amount from raw JSON: quoted
// strings are unquoted, numbers pass through as written, null and
// absence become empty. Garbage stays garbage and normalization
// treats it as zero.
func rawAmountText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return s
}
