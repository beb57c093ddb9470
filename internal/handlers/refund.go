package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/omega-sfx/omega-billing/internal/auth"
	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/refund"
)

type RefundHandler struct {
	Svc *refund.Service
}

func NewRefundHandler(svc *refund.Service) *RefundHandler { return &RefundHandler{Svc: svc} }

// Handle: GET /invoices/refund?id=... returns the dialog context (refundable
// balance, charge reference); POST submits the confirmed refund.
func (h *RefundHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.initiate(w, r)
	case http.MethodPost:
		h.submit(w, r)
	default:
		w.Header().Set("Allow", "GET,POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *RefundHandler) initiate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	ctx, err := h.Svc.Initiate(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ctx)
}

func (h *RefundHandler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	type submitReq struct {
		ChargeID string  `json:"charge_id"`
		Montant  float64 `json:"montant"`
		Reason   string  `json:"reason"`
		Notes    string  `json:"notes"`
	}
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	created, err := h.Svc.Submit(r.Context(), refund.SubmitInput{
		InvoiceID: id,
		ChargeID:  req.ChargeID,
		Amount:    req.Montant,
		Reason:    req.Reason,
		Notes:     req.Notes,
		AdminID:   uid,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}
