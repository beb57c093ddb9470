package models

import "time"

// Invoicing models
type Invoice struct {
	ID      uint          `gorm:"primaryKey"`
	Number  string        `gorm:"uniqueIndex;not null"` // ex: FAC-2026-00117, jamais réutilisé
	Status  InvoiceStatus `gorm:"not null;default:'draft'"`
	Items   []InvoiceItem `gorm:"foreignKey:InvoiceID"`
	QuoteID *uint         // devis d'origine, si converti
	OrderID *uint         // commande d'origine, si générée depuis le checkout

	// Instantané client (incl. mentions société quand applicable)
	ClientNom     string `gorm:"not null"`
	ClientEmail   string
	ClientPhone   string
	ClientAddress string
	Entreprise    string
	SIREN         string `gorm:"size:9"`
	SIRET         string `gorm:"size:14"`
	TVAIntra      string

	TotalHT          float64
	TotalTVA         float64
	TotalTTC         float64
	AmountPaid       float64 // agrégat, mis à jour uniquement en transaction serveur
	DueDate          time.Time
	PaymentTermsDays int `gorm:"default:30"`
	Notes            string
	MentionsLegales  string

	SentAt    *time.Time
	PaidAt    *time.Time
	CreatedBy uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

type InvoiceItem struct {
	ID             uint   `gorm:"primaryKey"`
	InvoiceID      uint   `gorm:"not null;index"`
	Description    string `gorm:"not null"`
	Quantity       int    `gorm:"not null"`
	PrixUnitaireHT float64
	TauxTVA        float64
	TotalHT        float64
	TotalTTC       float64
	Position       int
}
