package handlers

import (
	"net/http"

	"github.com/omega-sfx/omega-billing/internal/auth"
	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/ledger"
)

type OrderHandler struct {
	Svc *ledger.Service
}

func NewOrderHandler(svc *ledger.Service) *OrderHandler { return &OrderHandler{Svc: svc} }

// Convert: POST /orders/convert?id=... – generates the invoice for a paid
// storefront order.
func (h *OrderHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	inv, err := h.Svc.ConvertOrder(r.Context(), id, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}
