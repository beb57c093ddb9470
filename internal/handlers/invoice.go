package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/auth"
	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/i18n"
	"github.com/omega-sfx/omega-billing/internal/ledger"
	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/pdf"
)

type InvoiceHandler struct {
	DB  *gorm.DB
	Svc *ledger.Service
}

func NewInvoiceHandler(db *gorm.DB, svc *ledger.Service) *InvoiceHandler {
	return &InvoiceHandler{DB: db, Svc: svc}
}

// invoiceView is one list entry: the invoice plus the shared payment status.
type invoiceView struct {
	models.Invoice
	PaymentStatus ledger.PaymentStatus `json:"payment_status"`
}

func parseID(r *http.Request) (uint, bool) {
	idStr := r.URL.Query().Get("id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

func parseFilter(r *http.Request) (ledger.Filter, bool) {
	f := ledger.Filter{Search: strings.TrimSpace(r.URL.Query().Get("q"))}
	if v := r.URL.Query().Get("status"); v != "" && v != "all" {
		f.Status = models.InvoiceStatus(v)
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, false
		}
		f.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, false
		}
		// inclusive end of day
		f.To = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return f, true
}

// List: GET /invoices?q=&status=&from=&to=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_date", nil)
		return
	}
	// Opportunistic sweep so the list shows overdue states without a cron.
	if _, err := h.Svc.MarkOverdue(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	invs, err := h.Svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]invoiceView, 0, len(invs))
	for i := range invs {
		st, err := h.Svc.StatusFor(r.Context(), &invs[i])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views = append(views, invoiceView{Invoice: invs[i], PaymentStatus: st})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "total": len(views)})
}

// Create: POST /invoices – manual draft creation
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	type createReq struct {
		Customer ledger.CustomerInput `json:"customer"`
		Items    []ledger.ItemInput   `json:"items"`
		Notes    string               `json:"notes"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	inv, err := h.Svc.CreateDraft(r.Context(), req.Customer, req.Items, req.Notes, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

// Send: POST /invoices/send?id=...
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.Send(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Cancel: POST /invoices/cancel?id=...
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// RecordPayment: POST /invoices/payments?id=...
func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	type payReq struct {
		Montant   float64 `json:"montant"`
		Date      string  `json:"date"` // 2006-01-02, optional
		Mode      string  `json:"mode"`
		Reference string  `json:"reference"`
		Notes     string  `json:"notes"`
	}
	var req payReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	in := ledger.RecordPaymentInput{
		InvoiceID: id,
		Montant:   req.Montant,
		Mode:      models.PaymentMethod(req.Mode),
		Reference: req.Reference,
		Notes:     req.Notes,
		AdminID:   uid,
	}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_date", nil)
			return
		}
		in.Date = d
	}
	payment, inv, err := h.Svc.RecordManualPayment(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	st, err := h.Svc.StatusFor(r.Context(), inv)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"payment":        payment,
		"invoice":        inv,
		"payment_status": st,
	})
}

// PDF: GET /invoices/pdf?id=...
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var settings models.BillingSettings
	if err := h.DB.First(&settings, models.BillingSettingsID).Error; err != nil {
		writeServiceError(w, err)
		return
	}
	st, err := h.Svc.StatusFor(r.Context(), inv)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
	data, genErr := pdf.Invoice(pdf.InvoiceData{Invoice: *inv, Settings: settings, Status: st, Lang: lang})
	if genErr != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+inv.Number+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportCSV: GET /invoices/export.csv?q=&status=&from=&to=
func (h *InvoiceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_date", nil)
		return
	}
	invs, err := h.Svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rows := make([]ledger.CSVRow, 0, len(invs))
	for i := range invs {
		st, err := h.Svc.StatusFor(r.Context(), &invs[i])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rows = append(rows, ledger.CSVRow{Invoice: invs[i], Status: st})
	}
	lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="factures.csv"`)
	if err := ledger.ExportCSV(w, rows, lang); err != nil {
		// headers already written; nothing sane left to send
		_ = err
	}
}
