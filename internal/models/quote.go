package models

import "time"

// Quote (devis) précède la facture; accepté, il se convertit en facture
// envoyée et devient immuable.
type Quote struct {
	ID     uint        `gorm:"primaryKey"`
	Number string      `gorm:"uniqueIndex;not null"` // ex: DEV-2026-00042
	Status QuoteStatus `gorm:"not null;default:'draft'"`
	Items  []QuoteItem `gorm:"foreignKey:QuoteID"`

	// Instantané client à la création
	ClientNom     string `gorm:"not null"`
	ClientEmail   string
	ClientPhone   string
	ClientAddress string

	TotalHT  float64
	TotalTVA float64
	TotalTTC float64

	ValidUntil           time.Time // au-delà, le devis expire
	Notes                string
	ConvertedToInvoiceID *uint // facture issue de la conversion

	CreatedBy uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

type QuoteItem struct {
	ID             uint   `gorm:"primaryKey"`
	QuoteID        uint   `gorm:"not null;index"`
	Description    string `gorm:"not null"`
	Quantity       int    `gorm:"not null"`
	PrixUnitaireHT float64
	TauxTVA        float64
	TotalHT        float64
	TotalTTC       float64
	Position       int
}
