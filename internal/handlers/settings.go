package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/validation"
)

type SettingsHandler struct{ DB *gorm.DB }

func NewSettingsHandler(db *gorm.DB) *SettingsHandler { return &SettingsHandler{DB: db} }

// Handle: GET returns the singleton row, PUT upserts it by fixed id. The
// numbering counters are not writable from here; they only move through
// sequence allocation.
func (h *SettingsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		w.Header().Set("Allow", "GET,PUT")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter, _ *http.Request) {
	var settings models.BillingSettings
	if err := h.DB.First(&settings, models.BillingSettingsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "settings_not_configured", nil)
			return
		}
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

type settingsReq struct {
	RaisonSociale           string `json:"raison_sociale"`
	Adresse                 string `json:"adresse"`
	SIREN                   string `json:"siren"`
	SIRET                   string `json:"siret"`
	TVAIntra                string `json:"tva_intra"`
	IBAN                    string `json:"iban"`
	BIC                     string `json:"bic"`
	InvoicePrefix           string `json:"invoice_prefix"`
	QuotePrefix             string `json:"quote_prefix"`
	DefaultPaymentTermsDays int    `json:"default_payment_terms_days"`
	MentionsLegales         string `json:"mentions_legales"`
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req settingsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("raison_sociale", req.RaisonSociale, v)
	if req.DefaultPaymentTermsDays < 0 {
		v["default_payment_terms_days"] = "must_be_positive"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if req.InvoicePrefix == "" {
		req.InvoicePrefix = "FAC"
	}
	if req.QuotePrefix == "" {
		req.QuotePrefix = "DEV"
	}
	if req.DefaultPaymentTermsDays == 0 {
		req.DefaultPaymentTermsDays = 30
	}

	var settings models.BillingSettings
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&settings, models.BillingSettingsID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			settings = models.BillingSettings{ID: models.BillingSettingsID}
		}
		settings.RaisonSociale = req.RaisonSociale
		settings.Adresse = req.Adresse
		settings.SIREN = req.SIREN
		settings.SIRET = req.SIRET
		settings.TVAIntra = req.TVAIntra
		settings.IBAN = req.IBAN
		settings.BIC = req.BIC
		settings.InvoicePrefix = req.InvoicePrefix
		settings.QuotePrefix = req.QuotePrefix
		settings.DefaultPaymentTermsDays = req.DefaultPaymentTermsDays
		settings.MentionsLegales = req.MentionsLegales
		return tx.Save(&settings).Error
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}
