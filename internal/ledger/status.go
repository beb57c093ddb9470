package ledger

import (
	"math"

	"github.com/omega-sfx/omega-billing/internal/models"
)

// centTolerance absorbs float rounding when comparing monetary sums.
const centTolerance = 0.005

// PaymentStatus is the single authoritative view of an invoice's money state.
// Every display context (list, CSV, PDF, refund dialog) goes through this
// computation; nothing recomputes it locally.
type PaymentStatus struct {
	AmountPaid       float64 `json:"amount_paid"`
	TotalRefunded    float64 `json:"total_refunded"`
	NetToPay         float64 `json:"net_to_pay"`
	IsFullyPaid      bool    `json:"is_fully_paid"`
	IsRefunded       bool    `json:"is_refunded"`
	HasPartialRefund bool    `json:"has_partial_refund"`
}

// PaymentStatusOf is pure: it only reads the rows passed in. Payments and
// refunds must belong to the invoice.
//
// Refunded money is tracked both as Refund rows and as refund-method ledger
// rows; submissions write the pair linked through Payment.RefundID, so linked
// ledger rows are skipped here and legacy unlinked ones still count.
func PaymentStatusOf(inv *models.Invoice, payments []models.Payment, refunds []models.Refund) PaymentStatus {
	var st PaymentStatus
	if inv == nil {
		return st
	}
	for _, p := range payments {
		if p.Statut != models.PaymentSucceeded {
			continue
		}
		if p.Mode == models.MethodRefund {
			if p.RefundID == nil {
				st.TotalRefunded += p.Montant
			}
			continue
		}
		st.AmountPaid += p.Montant
	}
	for _, r := range refunds {
		if r.Status == models.RefundSucceeded {
			st.TotalRefunded += r.Montant
		}
	}
	st.AmountPaid = round2(st.AmountPaid)
	st.TotalRefunded = round2(st.TotalRefunded)

	owed := round2(inv.TotalTTC - st.AmountPaid + st.TotalRefunded)
	st.NetToPay = math.Max(0, owed)
	st.IsFullyPaid = owed <= centTolerance
	st.IsRefunded = inv.Status == models.InvoiceRefunded
	st.HasPartialRefund = st.TotalRefunded > centTolerance &&
		st.TotalRefunded < inv.TotalTTC-centTolerance &&
		!st.IsRefunded
	return st
}

// RefundableAmountOf returns what may still be sent back to the customer.
func RefundableAmountOf(inv *models.Invoice, payments []models.Payment, refunds []models.Refund) float64 {
	st := PaymentStatusOf(inv, payments, refunds)
	return round2(inv.TotalTTC - st.TotalRefunded)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
