package models

import "time"

// BillingSettingsID is the fixed primary key of the singleton row.
const BillingSettingsID uint = 1

// BillingSettings describes the issuing company and holds the document
// numbering counters. Exactly one row exists (upsert by fixed id); the
// counters are only ever bumped through sequence allocation inside a
// transaction.
type BillingSettings struct {
	ID            uint   `gorm:"primaryKey"`
	RaisonSociale string `gorm:"not null"`
	Adresse       string
	SIREN         string `gorm:"size:9"`
	SIRET         string `gorm:"size:14"`
	TVAIntra      string
	IBAN          string
	BIC           string

	InvoicePrefix string `gorm:"not null;default:'FAC'"`
	QuotePrefix   string `gorm:"not null;default:'DEV'"`
	InvoiceSeq    uint64 `gorm:"not null;default:0"`
	QuoteSeq      uint64 `gorm:"not null;default:0"`

	DefaultPaymentTermsDays int `gorm:"not null;default:30"`
	MentionsLegales         string

	CreatedAt time.Time
	UpdatedAt time.Time
}
