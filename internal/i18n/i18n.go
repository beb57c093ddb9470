package i18n

import "strings"

// Default language is French; the storefront is fr-first with an English
// fallback for the API.
const defaultLang = "fr"

var translations = map[string]map[string]string{
	"fr": {
		"required":          "Requis",
		"must_be_positive":  "Doit être positif",
		"out_of_range":      "Hors limites",
		"invoice":           "Facture",
		"quote":             "Devis",
		"date":              "Date",
		"client":            "Client",
		"email":             "Email",
		"total_ht":          "Total HT",
		"total_tva":         "TVA",
		"total_ttc":         "Total TTC",
		"amount_paid":       "Montant payé",
		"net_to_pay":        "Reste à payer",
		"status":            "Statut",
		"due_date":          "Échéance",
		"description":       "Description",
		"quantity":          "Qté",
		"unit_price":        "PU HT",
		"refunded_amount":   "Montant remboursé",

		"invoice_status_draft":     "Brouillon",
		"invoice_status_sent":      "Envoyée",
		"invoice_status_paid":      "Payée",
		"invoice_status_overdue":   "En retard",
		"invoice_status_cancelled": "Annulée",
		"invoice_status_refunded":  "Remboursée",

		"quote_status_draft":     "Brouillon",
		"quote_status_sent":      "Envoyé",
		"quote_status_accepted":  "Accepté",
		"quote_status_rejected":  "Refusé",
		"quote_status_expired":   "Expiré",
		"quote_status_converted": "Converti",
	},
	"en": {
		"required":          "Required",
		"must_be_positive":  "Must be positive",
		"out_of_range":      "Out of range",
		"invoice":           "Invoice",
		"quote":             "Quote",
		"date":              "Date",
		"client":            "Customer",
		"email":             "Email",
		"total_ht":          "Subtotal (excl. tax)",
		"total_tva":         "Tax",
		"total_ttc":         "Total (incl. tax)",
		"amount_paid":       "Amount paid",
		"net_to_pay":        "Amount due",
		"status":            "Status",
		"due_date":          "Due date",
		"description":       "Description",
		"quantity":          "Qty",
		"unit_price":        "Unit price",
		"refunded_amount":   "Refunded amount",

		"invoice_status_draft":     "Draft",
		"invoice_status_sent":      "Sent",
		"invoice_status_paid":      "Paid",
		"invoice_status_overdue":   "Overdue",
		"invoice_status_cancelled": "Cancelled",
		"invoice_status_refunded":  "Refunded",

		"quote_status_draft":     "Draft",
		"quote_status_sent":      "Sent",
		"quote_status_accepted":  "Accepted",
		"quote_status_rejected":  "Rejected",
		"quote_status_expired":   "Expired",
		"quote_status_converted": "Converted",
	},
}

// DetectLanguage picks a supported language from an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	s := strings.ToLower(strings.TrimSpace(acceptLanguage))
	if s == "" {
		return defaultLang
	}
	for _, part := range strings.Split(s, ",") {
		code := strings.SplitN(strings.TrimSpace(part), ";", 2)[0]
		if i := strings.Index(code, "-"); i > 0 {
			code = code[:i]
		}
		if _, ok := translations[code]; ok {
			return code
		}
	}
	return defaultLang
}

// T translates a code for the given language. Unknown languages fall back to
// French; unknown codes fall back to the code itself.
func T(lang, code string) string {
	if m, ok := translations[lang]; ok {
		if v, ok := m[code]; ok {
			return v
		}
	}
	if v, ok := translations[defaultLang][code]; ok {
		return v
	}
	return code
}
