package models

// QuoteStatus est le cycle de vie d'un devis.
type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "draft"
	QuoteSent      QuoteStatus = "sent"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteExpired   QuoteStatus = "expired"
	QuoteConverted QuoteStatus = "converted"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired, QuoteConverted:
		return true
	}
	return false
}

// Terminal signale qu'aucune transition n'est possible depuis cet état.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case QuoteRejected, QuoteExpired, QuoteConverted:
		return true
	}
	return false
}

// InvoiceStatus est le cycle de vie d'une facture.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceRefunded  InvoiceStatus = "refunded"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled, InvoiceRefunded:
		return true
	}
	return false
}

// AcceptsPayment indique si un encaissement manuel peut être saisi.
func (s InvoiceStatus) AcceptsPayment() bool {
	switch s {
	case InvoiceSent, InvoiceOverdue:
		return true
	}
	return false
}

// PaymentMethod est le mode d'encaissement (ou refund pour une ligne miroir).
type PaymentMethod string

const (
	MethodVirement    PaymentMethod = "virement"
	MethodCheque      PaymentMethod = "cheque"
	MethodEspeces     PaymentMethod = "especes"
	MethodCarte       PaymentMethod = "carte"
	MethodPrelevement PaymentMethod = "prelevement"
	MethodRefund      PaymentMethod = "refund"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodVirement, MethodCheque, MethodEspeces, MethodCarte, MethodPrelevement, MethodRefund:
		return true
	}
	return false
}

// PaymentState: seules les lignes succeeded comptent dans les agrégats.
type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentSucceeded PaymentState = "succeeded"
	PaymentFailed    PaymentState = "failed"
)

func (s PaymentState) Valid() bool {
	switch s {
	case PaymentPending, PaymentSucceeded, PaymentFailed:
		return true
	}
	return false
}

// RefundStatus suit la réponse du processeur.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
	RefundCancelled RefundStatus = "cancelled"
)

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundPending, RefundSucceeded, RefundFailed, RefundCancelled:
		return true
	}
	return false
}
