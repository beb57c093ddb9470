package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/ledger"
	"github.com/omega-sfx/omega-billing/internal/processor"
	"github.com/omega-sfx/omega-billing/internal/refund"
)

// writeServiceError maps domain errors to stable JSON codes. Provider and
// storage messages are logged in full but only a sanitized code reaches the
// client; financial mutations are never retried automatically.
func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *ledger.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", vErr.Violations)
	case errors.Is(err, ledger.ErrInvoiceNotFound):
		httpx.JSONError(w, http.StatusNotFound, "invoice_not_found", nil)
	case errors.Is(err, ledger.ErrQuoteNotFound):
		httpx.JSONError(w, http.StatusNotFound, "quote_not_found", nil)
	case errors.Is(err, ledger.ErrOrderNotFound):
		httpx.JSONError(w, http.StatusNotFound, "order_not_found", nil)
	case errors.Is(err, ledger.ErrInvalidState):
		httpx.JSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, refund.ErrNotRefundable):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "not_refundable", err.Error())
	case errors.Is(err, refund.ErrNoChargeReference):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "no_charge_reference", err.Error())
	case errors.Is(err, refund.ErrAmountTooHigh):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "refund_amount_exceeds_balance", err.Error())
	case errors.Is(err, refund.ErrInvalidAmount):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"amount": "must_be_positive"})
	case errors.Is(err, processor.ErrProviderDeclined), errors.Is(err, processor.ErrProviderTimeout):
		log.Error().Err(err).Msg("payment provider error")
		httpx.JSONError(w, http.StatusBadGateway, "processor_error", nil)
	default:
		log.Error().Err(err).Msg("storage error")
		httpx.JSONError(w, http.StatusInternalServerError, "storage_error", nil)
	}
}
