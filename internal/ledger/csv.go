package ledger

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/omega-sfx/omega-billing/internal/i18n"
	"github.com/omega-sfx/omega-billing/internal/models"
)

// CSVRow pairs an invoice with its computed payment status.
type CSVRow struct {
	Invoice models.Invoice
	Status  PaymentStatus
}

// ExportCSV writes the ledger table for offline reporting. Pure transform:
// no network, no persistence. Amounts carry two decimals; the status column
// is the localized label, not the raw code.
func ExportCSV(w io.Writer, rows []CSVRow, lang string) error {
	cw := csv.NewWriter(w)
	header := []string{
		i18n.T(lang, "invoice"),
		i18n.T(lang, "date"),
		i18n.T(lang, "client"),
		i18n.T(lang, "email"),
		i18n.T(lang, "total_ht"),
		i18n.T(lang, "total_tva"),
		i18n.T(lang, "total_ttc"),
		i18n.T(lang, "amount_paid"),
		i18n.T(lang, "status"),
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Invoice.Number,
			r.Invoice.CreatedAt.Format("2006-01-02"),
			r.Invoice.ClientNom,
			r.Invoice.ClientEmail,
			money(r.Invoice.TotalHT),
			money(r.Invoice.TotalTVA),
			money(r.Invoice.TotalTTC),
			money(r.Status.AmountPaid),
			i18n.T(lang, "invoice_status_"+string(r.Invoice.Status)),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
