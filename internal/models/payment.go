package models

import "time"

// Payment is an append-only ledger row. Corrections are new offsetting rows,
// never edits of a past one.
type Payment struct {
	ID        uint  `gorm:"primaryKey"`
	InvoiceID *uint `gorm:"index"`
	OrderID   *uint `gorm:"index"`

	Montant   float64       `gorm:"not null"`
	Date      time.Time     `gorm:"not null"`
	Mode      PaymentMethod `gorm:"not null"` // virement, cheque, especes, carte, prelevement, refund
	Statut    PaymentState  `gorm:"not null;default:'succeeded'"`
	Reference string        // référence libre (n° de transaction, n° de chèque...)
	ChargeID  string        `gorm:"index"` // identifiant processeur (ch_/pi_), cible des remboursements
	RefundID  *uint         `gorm:"index"` // ligne Refund miroir quand Mode == refund

	Commentaire string
	CreatedBy   uint
	CreatedAt   time.Time
}
