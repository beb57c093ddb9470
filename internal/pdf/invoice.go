// Package pdf renders billing documents server-side. Input is the document
// model, output is PDF bytes; no browser is involved.
package pdf

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/omega-sfx/omega-billing/internal/i18n"
	"github.com/omega-sfx/omega-billing/internal/ledger"
	"github.com/omega-sfx/omega-billing/internal/models"
)

// InvoiceData bundles everything an invoice render needs. The payment status
// comes from the shared ledger computation, never recomputed here.
type InvoiceData struct {
	Invoice  models.Invoice
	Settings models.BillingSettings
	Status   ledger.PaymentStatus
	Lang     string
}

// Invoice renders a portrait A4 facture.
func Invoice(data InvoiceData) ([]byte, error) {
	lang := data.Lang
	if lang == "" {
		lang = "fr"
	}
	inv := data.Invoice

	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	// En-tête émetteur
	m.AddRow(8, text.NewCol(12, data.Settings.RaisonSociale, props.Text{Size: 14, Style: fontstyle.Bold}))
	m.AddRow(5, text.NewCol(12, data.Settings.Adresse, props.Text{Size: 9}))
	m.AddRow(5, text.NewCol(12, fmt.Sprintf("SIRET %s — TVA %s", data.Settings.SIRET, data.Settings.TVAIntra), props.Text{Size: 8}))
	m.AddRow(6, col.New(12))

	m.AddRow(10,
		text.NewCol(6, fmt.Sprintf("%s %s", i18n.T(lang, "invoice"), inv.Number), props.Text{Size: 12, Style: fontstyle.Bold}),
		text.NewCol(6, fmt.Sprintf("%s: %s", i18n.T(lang, "date"), inv.CreatedAt.Format("02/01/2006")), props.Text{Size: 10, Align: align.Right}),
	)
	m.AddRow(5, text.NewCol(12, fmt.Sprintf("%s: %s", i18n.T(lang, "due_date"), inv.DueDate.Format("02/01/2006")), props.Text{Size: 9}))
	m.AddRow(6, col.New(12))

	// Bloc client
	m.AddRow(6, text.NewCol(12, inv.ClientNom, props.Text{Size: 10, Style: fontstyle.Bold}))
	if inv.Entreprise != "" {
		m.AddRow(5, text.NewCol(12, fmt.Sprintf("%s — SIRET %s", inv.Entreprise, inv.SIRET), props.Text{Size: 9}))
	}
	if inv.ClientAddress != "" {
		m.AddRow(5, text.NewCol(12, inv.ClientAddress, props.Text{Size: 9}))
	}
	if inv.ClientEmail != "" {
		m.AddRow(5, text.NewCol(12, inv.ClientEmail, props.Text{Size: 9}))
	}
	m.AddRow(6, col.New(12))

	m.AddRows(itemRows(lang, inv.Items)...)
	m.AddRow(3, line.NewCol(12))

	// Totaux
	m.AddRow(6,
		text.NewCol(9, i18n.T(lang, "total_ht"), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(3, eur(inv.TotalHT), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(6,
		text.NewCol(9, i18n.T(lang, "total_tva"), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(3, eur(inv.TotalTVA), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(7,
		text.NewCol(9, i18n.T(lang, "total_ttc"), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(3, eur(inv.TotalTTC), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	// État des paiements (vue partagée)
	m.AddRow(6,
		text.NewCol(9, i18n.T(lang, "amount_paid"), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(3, eur(data.Status.AmountPaid), props.Text{Size: 9, Align: align.Right}),
	)
	if data.Status.TotalRefunded > 0 {
		m.AddRow(6,
			text.NewCol(9, i18n.T(lang, "refunded_amount"), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, eur(data.Status.TotalRefunded), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(7,
		text.NewCol(9, i18n.T(lang, "net_to_pay"), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(3, eur(data.Status.NetToPay), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(8, col.New(12))
	m.AddRow(5, text.NewCol(12, fmt.Sprintf("%s: %s", i18n.T(lang, "status"), i18n.T(lang, "invoice_status_"+string(inv.Status))), props.Text{Size: 8}))
	if data.Settings.IBAN != "" {
		m.AddRow(5, text.NewCol(12, fmt.Sprintf("IBAN %s — BIC %s", data.Settings.IBAN, data.Settings.BIC), props.Text{Size: 8}))
	}
	if inv.MentionsLegales != "" {
		m.AddRow(8, text.NewCol(12, inv.MentionsLegales, props.Text{Size: 7}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf generation: %w", err)
	}
	return doc.GetBytes(), nil
}

func itemRows(lang string, items []models.InvoiceItem) []core.Row {
	rows := []core.Row{
		row.New(7).Add(
			text.NewCol(6, i18n.T(lang, "description"), props.Text{Size: 9, Style: fontstyle.Bold}),
			text.NewCol(1, i18n.T(lang, "quantity"), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(2, i18n.T(lang, "unit_price"), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(1, "TVA", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(2, i18n.T(lang, "total_ht"), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		),
	}
	for _, it := range items {
		rows = append(rows, row.New(6).Add(
			text.NewCol(6, it.Description, props.Text{Size: 9}),
			text.NewCol(1, fmt.Sprintf("%d", it.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, eur(it.PrixUnitaireHT), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, fmt.Sprintf("%.0f%%", it.TauxTVA), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, eur(it.TotalHT), props.Text{Size: 9, Align: align.Right}),
		))
	}
	return rows
}

func eur(v float64) string {
	return fmt.Sprintf("%.2f €", v)
}
