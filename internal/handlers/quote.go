package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/omega-sfx/omega-billing/internal/auth"
	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/ledger"
	"github.com/omega-sfx/omega-billing/internal/models"
)

type QuoteHandler struct {
	Svc *ledger.Service
}

func NewQuoteHandler(svc *ledger.Service) *QuoteHandler { return &QuoteHandler{Svc: svc} }

// List: GET /quotes?status=
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Svc.ExpireQuotes(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	status := models.QuoteStatus(r.URL.Query().Get("status"))
	if r.URL.Query().Get("status") == "all" {
		status = ""
	}
	quotes, err := h.Svc.ListQuotes(r.Context(), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": quotes, "total": len(quotes)})
}

// Create: POST /quotes
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	type createReq struct {
		Customer   ledger.CustomerInput `json:"customer"`
		Items      []ledger.ItemInput   `json:"items"`
		ValidUntil string               `json:"valid_until"` // 2006-01-02, optional
		Notes      string               `json:"notes"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var validUntil time.Time
	if req.ValidUntil != "" {
		d, err := time.Parse("2006-01-02", req.ValidUntil)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_date", nil)
			return
		}
		validUntil = d
	}
	quote, err := h.Svc.CreateQuote(r.Context(), req.Customer, req.Items, validUntil, req.Notes, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *QuoteHandler) transition(w http.ResponseWriter, r *http.Request, fn func(r *http.Request, id uint) (any, error)) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	out, err := fn(r, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Send: POST /quotes/send?id=...
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, id uint) (any, error) {
		return h.Svc.SendQuote(r.Context(), id)
	})
}

// Accept: POST /quotes/accept?id=...
func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, id uint) (any, error) {
		return h.Svc.AcceptQuote(r.Context(), id)
	})
}

// Reject: POST /quotes/reject?id=...
func (h *QuoteHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, id uint) (any, error) {
		return h.Svc.RejectQuote(r.Context(), id)
	})
}

// Convert: POST /quotes/convert?id=... – one-way, allocates the invoice number
func (h *QuoteHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	inv, err := h.Svc.ConvertQuote(r.Context(), id, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}
