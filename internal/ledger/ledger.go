// Package ledger owns the quote and invoice lifecycle and the arithmetic
// that keeps their monetary fields consistent.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/events"
	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/validation"
)

type Service struct {
	DB  *gorm.DB
	Hub *events.Hub // optional; advisory UI refresh only
}

func NewService(db *gorm.DB, hub *events.Hub) *Service {
	return &Service{DB: db, Hub: hub}
}

func (s *Service) notify(table, action string, id uint) {
	if s.Hub != nil {
		s.Hub.Publish(events.Event{Table: table, Action: action, ID: id})
	}
}

// Filter narrows the invoice listing. Zero values mean "no constraint".
type Filter struct {
	Search string
	Status models.InvoiceStatus
	From   time.Time
	To     time.Time
}

// List returns invoices newest-first. Search matches the invoice number or
// the customer name, case-insensitive. Read-only.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Invoice, error) {
	q := s.DB.WithContext(ctx).Model(&models.Invoice{})
	if t := strings.TrimSpace(f.Search); t != "" {
		like := "%" + strings.ToLower(t) + "%"
		q = q.Where("lower(number) LIKE ? OR lower(client_nom) LIKE ?", like, like)
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			v := validation.Violations{"status": "out_of_range"}
			return nil, validationErr(v)
		}
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To)
	}
	var invs []models.Invoice
	if err := q.Preload("Items").Order("created_at desc, id desc").Find(&invs).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invs, nil
}

// Get loads one invoice with its items.
func (s *Service) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.DB.WithContext(ctx).Preload("Items").First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// MoneyRows loads the payment and refund rows of an invoice, for feeding
// PaymentStatusOf.
func (s *Service) MoneyRows(ctx context.Context, invoiceID uint) ([]models.Payment, []models.Refund, error) {
	var payments []models.Payment
	if err := s.DB.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("id").Find(&payments).Error; err != nil {
		return nil, nil, err
	}
	var refunds []models.Refund
	if err := s.DB.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("id").Find(&refunds).Error; err != nil {
		return nil, nil, err
	}
	return payments, refunds, nil
}

// StatusFor loads the money rows and computes the shared payment status.
func (s *Service) StatusFor(ctx context.Context, inv *models.Invoice) (PaymentStatus, error) {
	payments, refunds, err := s.MoneyRows(ctx, inv.ID)
	if err != nil {
		return PaymentStatus{}, err
	}
	return PaymentStatusOf(inv, payments, refunds), nil
}

// ItemInput is one document line as submitted by the admin.
type ItemInput struct {
	Description    string  `json:"description"`
	Quantity       int     `json:"quantity"`
	PrixUnitaireHT float64 `json:"prix_unitaire_ht"`
	TauxTVA        float64 `json:"taux_tva"`
}

// CustomerInput is the customer snapshot captured on the document.
type CustomerInput struct {
	Nom        string `json:"nom"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Entreprise string `json:"entreprise"`
	SIREN      string `json:"siren"`
	SIRET      string `json:"siret"`
	TVAIntra   string `json:"tva_intra"`
}

func validateItems(items []ItemInput) validation.Violations {
	v := validation.Violations{}
	if len(items) == 0 {
		v["items"] = "required"
		return v
	}
	for _, it := range items {
		validation.Required("description", it.Description, v)
		validation.PositiveInt("quantity", it.Quantity, v)
		validation.PositiveFloat("prix_unitaire_ht", it.PrixUnitaireHT, v)
		validation.RangeFloat("taux_tva", it.TauxTVA, 0, 100, v)
		if it.TauxTVA == 0 {
			delete(v, "taux_tva") // 0% est légal (exonération)
		}
	}
	return v
}

// buildInvoiceItems computes per-line and document totals.
func buildInvoiceItems(items []ItemInput) ([]models.InvoiceItem, float64, float64, float64) {
	rows := make([]models.InvoiceItem, 0, len(items))
	var ht, tva float64
	for i, it := range items {
		lineHT := round2(float64(it.Quantity) * it.PrixUnitaireHT)
		lineTTC := round2(lineHT * (1 + it.TauxTVA/100))
		rows = append(rows, models.InvoiceItem{
			Description:    it.Description,
			Quantity:       it.Quantity,
			PrixUnitaireHT: it.PrixUnitaireHT,
			TauxTVA:        it.TauxTVA,
			TotalHT:        lineHT,
			TotalTTC:       lineTTC,
			Position:       i,
		})
		ht += lineHT
		tva += lineTTC - lineHT
	}
	ht = round2(ht)
	tva = round2(tva)
	return rows, ht, tva, round2(ht + tva)
}

// CreateDraft creates a draft invoice with an atomically allocated number.
func (s *Service) CreateDraft(ctx context.Context, customer CustomerInput, items []ItemInput, notes string, adminID uint) (*models.Invoice, error) {
	v := validateItems(items)
	validation.Required("nom", customer.Nom, v)
	if !v.Empty() {
		return nil, validationErr(v)
	}
	rows, ht, tva, ttc := buildInvoiceItems(items)

	var inv models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, settings, err := NextInvoiceNumber(tx, time.Now())
		if err != nil {
			return err
		}
		inv = models.Invoice{
			Number:           number,
			Status:           models.InvoiceDraft,
			ClientNom:        customer.Nom,
			ClientEmail:      customer.Email,
			ClientPhone:      customer.Phone,
			ClientAddress:    customer.Address,
			Entreprise:       customer.Entreprise,
			SIREN:            customer.SIREN,
			SIRET:            customer.SIRET,
			TVAIntra:         customer.TVAIntra,
			TotalHT:          ht,
			TotalTVA:         tva,
			TotalTTC:         ttc,
			PaymentTermsDays: settings.DefaultPaymentTermsDays,
			DueDate:          time.Now().AddDate(0, 0, settings.DefaultPaymentTermsDays),
			Notes:            notes,
			MentionsLegales:  settings.MentionsLegales,
			CreatedBy:        adminID,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].InvoiceID = inv.ID
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		inv.Items = rows
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.notify("invoices", "insert", inv.ID)
	return &inv, nil
}

// Send stamps SentAt and moves the invoice to sent.
func (s *Service) Send(ctx context.Context, id uint) (*models.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvoiceDraft {
		return nil, fmt.Errorf("%w: cannot send a %s invoice", ErrInvalidState, inv.Status)
	}
	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(inv).Updates(map[string]any{
		"status":  models.InvoiceSent,
		"sent_at": now,
	}).Error; err != nil {
		return nil, err
	}
	inv.Status = models.InvoiceSent
	inv.SentAt = &now
	s.notify("invoices", "update", inv.ID)
	return inv, nil
}

// Cancel is a status flip; invoices are never deleted (audit trail).
func (s *Service) Cancel(ctx context.Context, id uint) (*models.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case models.InvoiceDraft, models.InvoiceSent, models.InvoiceOverdue:
	case models.InvoicePaid, models.InvoiceCancelled, models.InvoiceRefunded:
		return nil, fmt.Errorf("%w: cannot cancel a %s invoice", ErrInvalidState, inv.Status)
	default:
		return nil, fmt.Errorf("%w: unknown status %s", ErrInvalidState, inv.Status)
	}
	if err := s.DB.WithContext(ctx).Model(inv).Update("status", models.InvoiceCancelled).Error; err != nil {
		return nil, err
	}
	inv.Status = models.InvoiceCancelled
	s.notify("invoices", "update", inv.ID)
	return inv, nil
}

// MarkOverdue flips sent invoices past their due date. Invoked before
// listings; harmless to run repeatedly.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceSent, time.Now()).
		Update("status", models.InvoiceOverdue)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("count", res.RowsAffected).Msg("invoices marked overdue")
		s.notify("invoices", "update", 0)
	}
	return res.RowsAffected, nil
}

// RecordPaymentInput describes a manual payment (virement, chèque, espèces...).
type RecordPaymentInput struct {
	InvoiceID uint
	Montant   float64
	Date      time.Time
	Mode      models.PaymentMethod
	Reference string
	Notes     string
	AdminID   uint
}

// RecordManualPayment appends a succeeded ledger row and updates the
// invoice's AmountPaid aggregate in one transaction. When the cumulative
// amount settles the invoice, status flips to paid and PaidAt is stamped.
func (s *Service) RecordManualPayment(ctx context.Context, in RecordPaymentInput) (*models.Payment, *models.Invoice, error) {
	v := validation.Violations{}
	validation.PositiveFloat("montant", in.Montant, v)
	if !in.Mode.Valid() || in.Mode == models.MethodRefund {
		v["mode"] = "out_of_range"
	}
	if !v.Empty() {
		return nil, nil, validationErr(v)
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	var payment models.Payment
	var inv models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The UPDATE takes the invoice row write lock, serializing concurrent
		// aggregate mutations on the same invoice.
		res := tx.Model(&models.Invoice{}).Where("id = ?", in.InvoiceID).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvoiceNotFound
		}
		if err := tx.First(&inv, in.InvoiceID).Error; err != nil {
			return err
		}
		if !inv.Status.AcceptsPayment() {
			return fmt.Errorf("%w: cannot record a payment on a %s invoice", ErrInvalidState, inv.Status)
		}

		payment = models.Payment{
			InvoiceID:   &inv.ID,
			Montant:     round2(in.Montant),
			Date:        in.Date,
			Mode:        in.Mode,
			Statut:      models.PaymentSucceeded,
			Reference:   in.Reference,
			Commentaire: in.Notes,
			CreatedBy:   in.AdminID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		updates := map[string]any{"amount_paid": round2(inv.AmountPaid + payment.Montant)}
		if round2(inv.AmountPaid+payment.Montant) >= inv.TotalTTC-centTolerance && inv.Status != models.InvoicePaid {
			updates["status"] = models.InvoicePaid
			updates["paid_at"] = in.Date
		}
		if err := tx.Model(&inv).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&inv, inv.ID).Error
	})
	if err != nil {
		return nil, nil, err
	}
	s.notify("payments", "insert", payment.ID)
	s.notify("invoices", "update", inv.ID)
	return &payment, &inv, nil
}
