/*
handlers.go - HTTP API handlers for the budget engine

PURPOSE:
  Exposes the ledger/registry engine via REST. Handles HTTP
  request/response, JSON serialization, input validation, and delegates
  to the registry.

ENDPOINTS:
  Records:
    GET    /api/records                      List records with figures
    POST   /api/records                      Create record
    GET    /api/records/{id}                 Get one record
    PUT    /api/records/{id}                 Edit the request
    DELETE /api/records/{id}                 Delete record (cascade)
    GET    /api/records/{id}/consumption     Advanced/billed/balance

  Advance:
    PUT    /api/records/{id}/advance         Create or replace advance
    DELETE /api/records/{id}/advance         Remove advance

  Billing:
    POST   /api/records/{id}/billings            Add one entry
    POST   /api/records/{id}/billings/batch      Batch reconciliation
    PUT    /api/records/{id}/billings/{entryID}  Edit entry
    DELETE /api/records/{id}/billings/{entryID}  Remove entry

  Portfolio:
    GET    /api/dashboard           Filterable totals + summary rows
    GET    /api/reports/advances    Advances report
    GET    /api/reports/billings    Billings report
    GET    /api/options             Selectable form values
    POST   /api/reload              Invalidate and reload from store

ERROR HANDLING:
  - 400: validation errors, malformed JSON
  - 404: unknown record or billing-entry ID
  - 500: store read failures on reload
  A failed store WRITE is not an error status: the change is live in
  memory, so the success payload carries a "notice" instead.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/lumen/budget-engine/ledger"
	"github.com/lumen/budget-engine/registry"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry *registry.Registry
	Catalog  Catalog

	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewHandler creates a handler over the given registry.
func NewHandler(reg *registry.Registry, catalog Catalog, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Registry: reg,
		Catalog:  catalog,
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns all records with their derived figures.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records := h.Registry.Records()
	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRecord creates a record around a new request.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req UpsertRecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Registry.CreateRecord(r.Context(), ledger.Request{
		Description: req.Description,
		Solicitor:   req.Solicitor,
		Estimated:   req.Estimated,
		Date:        ledger.ParseDate(req.Date),
		Notes:       req.Notes,
		Unit:        req.Unit,
	})
	if err != nil && !ledger.IsPersistence(err) {
		writeError(w, http.StatusInternalServerError, "Failed to create record", err)
		return
	}

	dto := toRecordDTO(rec)
	dto.Notice = noticeText(err)
	writeJSON(w, http.StatusCreated, dto)
}

// GetRecord returns a single record.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Record not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// UpdateRecord edits the record's request.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req UpsertRecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Registry.UpdateRequest(r.Context(), chi.URLParam(r, "id"), ledger.Request{
		Description: req.Description,
		Solicitor:   req.Solicitor,
		Estimated:   req.Estimated,
		Date:        ledger.ParseDate(req.Date),
		Notes:       req.Notes,
		Unit:        req.Unit,
	})
	h.writeMutationStatus(w, err, "Failed to update record")
}

// DeleteRecord removes a record and everything it owns.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	err := h.Registry.DeleteRecord(r.Context(), chi.URLParam(r, "id"))
	h.writeMutationStatus(w, err, "Failed to delete record")
}

// GetConsumption returns the (advanced, billed, balance) triple.
func (h *Handler) GetConsumption(w http.ResponseWriter, r *http.Request) {
	cons, err := h.Registry.Consumption(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Record not found", err)
		return
	}
	writeJSON(w, http.StatusOK, ConsumptionDTO{
		Advanced: cons.Advanced,
		Billed:   cons.Billed,
		Balance:  cons.Balance,
		Status:   string(cons.Status()),
	})
}

// =============================================================================
// ADVANCE HANDLERS
// =============================================================================

// SetAdvance creates or replaces the record's advance.
func (h *Handler) SetAdvance(w http.ResponseWriter, r *http.Request) {
	var req SetAdvanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "Advance amount must be greater than zero", nil)
		return
	}

	err := h.Registry.SetAdvance(r.Context(), chi.URLParam(r, "id"), ledger.Advance{
		Amount:      req.Amount,
		Date:        ledger.ParseDate(req.Date),
		Responsible: req.Responsible,
		Note:        req.Note,
		Unit:        req.Unit,
	})
	h.writeMutationStatus(w, err, "Failed to set advance")
}

// DeleteAdvance removes the advance; billing entries survive.
func (h *Handler) DeleteAdvance(w http.ResponseWriter, r *http.Request) {
	err := h.Registry.RemoveAdvance(r.Context(), chi.URLParam(r, "id"))
	h.writeMutationStatus(w, err, "Failed to remove advance")
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// CreateBilling adds one billing entry. This path does not enforce the
// advance limit; only the batch path does.
func (h *Handler) CreateBilling(w http.ResponseWriter, r *http.Request) {
	var req CreateBillingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "Billing amount must be greater than zero", nil)
		return
	}

	entry, err := h.Registry.AddBilling(r.Context(), chi.URLParam(r, "id"), ledger.BillingEntry{
		Invoice:     req.Invoice,
		Amount:      req.Amount,
		Date:        ledger.ParseDate(req.Date),
		Description: req.Description,
		Unit:        req.Unit,
	})
	if err != nil && !ledger.IsPersistence(err) {
		h.writeDomainError(w, err, "Failed to add billing entry")
		return
	}

	dto := toBillingDTO(*entry)
	dto.Notice = noticeText(err)
	writeJSON(w, http.StatusCreated, dto)
}

// UpdateBilling edits one entry in place.
func (h *Handler) UpdateBilling(w http.ResponseWriter, r *http.Request) {
	var req CreateBillingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "Billing amount must be greater than zero", nil)
		return
	}

	err := h.Registry.UpdateBilling(r.Context(), chi.URLParam(r, "id"), ledger.BillingEntry{
		ID:          chi.URLParam(r, "entryID"),
		Invoice:     req.Invoice,
		Amount:      req.Amount,
		Date:        ledger.ParseDate(req.Date),
		Description: req.Description,
		Unit:        req.Unit,
	})
	h.writeMutationStatus(w, err, "Failed to update billing entry")
}

// DeleteBilling removes one entry.
func (h *Handler) DeleteBilling(w http.ResponseWriter, r *http.Request) {
	err := h.Registry.RemoveBilling(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "entryID"))
	h.writeMutationStatus(w, err, "Failed to remove billing entry")
}

// ProcessBatch runs batch reconciliation. The result is returned with
// 200 whether the batch committed, was rejected over the limit, or had
// no valid rows; only an unknown record is a 404.
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.Registry.ProcessBatch(
		r.Context(), chi.URLParam(r, "id"), toProposedRows(req.Rows), req.AllowOverride)
	if err != nil && !ledger.IsPersistence(err) {
		h.writeDomainError(w, err, "Failed to process batch")
		return
	}

	writeJSON(w, http.StatusOK, BatchResultDTO{
		Inserted: result.Inserted,
		Total:    result.Total,
		Exceeded: result.Exceeded,
		Message:  result.Message,
		Notice:   noticeText(err),
	})
}

// =============================================================================
// PORTFOLIO HANDLERS
// =============================================================================

// Dashboard returns filtered totals and per-record summary rows.
// Filters: unit, solicitor, status (repeatable or comma-separated),
// from/to (inclusive request-date range, both required to activate).
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{
		Units:      queryList(q["unit"]),
		Solicitors: queryList(q["solicitor"]),
		From:       ledger.ParseDate(q.Get("from")),
		To:         ledger.ParseDate(q.Get("to")),
	}
	for _, s := range queryList(q["status"]) {
		filter.Statuses = append(filter.Statuses, ledger.Status(s))
	}

	records := filter.Apply(h.Registry.Records())
	totals := ledger.Total(records)
	rows := ledger.Summarize(records)

	dto := DashboardDTO{
		Totals: TotalsDTO{
			Records:  totals.Records,
			Advanced: totals.Advanced,
			Billed:   totals.Billed,
			Balance:  totals.Balance,
		},
		Rows: make([]SummaryRowDTO, 0, len(rows)),
	}
	for _, row := range rows {
		dto.Rows = append(dto.Rows, SummaryRowDTO{
			RecordID:    row.RecordID,
			Solicitor:   row.Solicitor,
			Description: row.Description,
			Unit:        row.Unit,
			Advanced:    row.Advanced,
			Billed:      row.Billed,
			Balance:     row.Balance,
			Status:      string(row.Status),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// AdvancesReport lists every record that has an advance.
func (h *Handler) AdvancesReport(w http.ResponseWriter, r *http.Request) {
	rows := []AdvanceReportRowDTO{}
	for _, rec := range h.Registry.Records() {
		if rec.Advance == nil {
			continue
		}
		rows = append(rows, AdvanceReportRowDTO{
			RecordID:    rec.ID,
			Solicitor:   rec.Request.Solicitor,
			Description: rec.Request.Description,
			Unit:        rec.Request.Unit,
			Amount:      rec.Advance.Amount,
			Date:        rec.Advance.Date.String(),
			Responsible: rec.Advance.Responsible,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

// BillingsReport lists every billing entry across all records, with
// the display unit resolved entry > advance > request.
func (h *Handler) BillingsReport(w http.ResponseWriter, r *http.Request) {
	rows := []BillingReportRowDTO{}
	for _, rec := range h.Registry.Records() {
		advUnit := ""
		if rec.Advance != nil {
			advUnit = rec.Advance.Unit
		}
		for _, e := range rec.Billings {
			rows = append(rows, BillingReportRowDTO{
				RecordID:    rec.ID,
				Unit:        ledger.ResolveUnit(e.Unit, advUnit, rec.Request.Unit),
				Invoice:     e.Invoice,
				Description: e.Description,
				Amount:      e.Amount,
				Date:        e.Date.String(),
			})
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetOptions returns the selectable form values.
func (h *Handler) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.Options(h.Registry.Records()))
}

// Reload drops the mirror and repopulates it from the store.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	h.Registry.Invalidate()
	if err := h.Registry.Load(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload records", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON body; writes a 400 and returns
// false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeMutationStatus maps a registry mutation outcome to a response:
// nil -> ok, persistence notice -> ok with notice, not-found -> 404.
func (h *Handler) writeMutationStatus(w http.ResponseWriter, err error, failMsg string) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	case ledger.IsPersistence(err):
		writeJSON(w, http.StatusOK, StatusResponse{Status: "ok", Notice: err.Error()})
	default:
		h.writeDomainError(w, err, failMsg)
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, failMsg string) {
	if ledger.IsNotFound(err) {
		writeError(w, http.StatusNotFound, failMsg, err)
		return
	}
	h.log.WithError(err).Error(failMsg)
	writeError(w, http.StatusInternalServerError, failMsg, err)
}

func noticeText(err error) string {
	var pe *ledger.PersistenceError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return ""
}

// queryList flattens repeated params and comma-separated values.
func queryList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
