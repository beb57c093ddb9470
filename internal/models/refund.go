package models

import (
	"time"

	"gorm.io/datatypes"
)

// Refund is a processor-backed reversal of a captured card payment.
type Refund struct {
	ID        uint  `gorm:"primaryKey"`
	InvoiceID *uint `gorm:"index"`
	OrderID   *uint `gorm:"index"`

	ProviderRefundID string `gorm:"index"` // re_... côté processeur
	PaymentIntentID  string
	Montant          float64      `gorm:"not null"`
	Reason           string
	Status           RefundStatus `gorm:"not null;default:'pending'"`
	AdminNotes       string

	// Clé envoyée au processeur; un resoumis accidentel ne crée pas un second
	// remboursement côté processeur.
	IdempotencyKey string         `gorm:"uniqueIndex"`
	RawResponse    datatypes.JSON // réponse processeur brute, pour audit

	CreatedBy uint
	CreatedAt time.Time
	UpdatedAt time.Time
}
