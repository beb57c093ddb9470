package models

import "time"

// Order is owned by the storefront checkout; only the fields needed to
// generate an invoice from a paid order live here.
type Order struct {
	ID     uint   `gorm:"primaryKey"`
	Number string `gorm:"uniqueIndex;not null"`

	ClientNom     string `gorm:"not null"`
	ClientEmail   string
	ClientPhone   string
	ClientAddress string

	TotalHT  float64
	TotalTVA float64
	TotalTTC float64

	ChargeID  string     // capture carte du checkout en ligne
	PaidAt    *time.Time // renseigné par le checkout
	InvoiceID *uint      // facture générée, le cas échéant

	CreatedAt time.Time
	UpdatedAt time.Time
}
