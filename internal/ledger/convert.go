package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/models"
)

// ConvertQuote turns an accepted devis into a sent invoice. One transaction:
// number allocation, invoice + line snapshot, quote flip to converted. A
// second call on the same quote fails on the status check and never creates
// a duplicate invoice.
func (s *Service) ConvertQuote(ctx context.Context, quoteID, adminID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row write lock first: two concurrent conversions serialize here and
		// the loser sees status converted.
		res := tx.Model(&models.Quote{}).Where("id = ?", quoteID).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrQuoteNotFound
		}
		var quote models.Quote
		if err := tx.Preload("Items").First(&quote, quoteID).Error; err != nil {
			return err
		}
		if quote.Status != models.QuoteAccepted {
			return fmt.Errorf("%w: quote %s is %s, only accepted quotes convert", ErrInvalidState, quote.Number, quote.Status)
		}

		number, settings, err := NextInvoiceNumber(tx, time.Now())
		if err != nil {
			return err
		}
		now := time.Now()
		inv = models.Invoice{
			Number:           number,
			Status:           models.InvoiceSent,
			QuoteID:          &quote.ID,
			ClientNom:        quote.ClientNom,
			ClientEmail:      quote.ClientEmail,
			ClientPhone:      quote.ClientPhone,
			ClientAddress:    quote.ClientAddress,
			TotalHT:          quote.TotalHT,
			TotalTVA:         quote.TotalTVA,
			TotalTTC:         quote.TotalTTC,
			PaymentTermsDays: settings.DefaultPaymentTermsDays,
			DueDate:          now.AddDate(0, 0, settings.DefaultPaymentTermsDays),
			Notes:            quote.Notes,
			MentionsLegales:  settings.MentionsLegales,
			SentAt:           &now,
			CreatedBy:        adminID,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		items := make([]models.InvoiceItem, 0, len(quote.Items))
		for _, it := range quote.Items {
			items = append(items, models.InvoiceItem{
				InvoiceID:      inv.ID,
				Description:    it.Description,
				Quantity:       it.Quantity,
				PrixUnitaireHT: it.PrixUnitaireHT,
				TauxTVA:        it.TauxTVA,
				TotalHT:        it.TotalHT,
				TotalTTC:       it.TotalTTC,
				Position:       it.Position,
			})
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		inv.Items = items

		return tx.Model(&quote).Updates(map[string]any{
			"status":                  models.QuoteConverted,
			"converted_to_invoice_id": inv.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify("quotes", "update", quoteID)
	s.notify("invoices", "insert", inv.ID)
	return &inv, nil
}

// ConvertOrder generates an invoice from a paid storefront order. The order
// was settled online, so the invoice starts sent with PaidAt stamped and a
// carte ledger row carrying the checkout's charge reference (linked to both
// the order and the invoice).
func (s *Service) ConvertOrder(ctx context.Context, orderID, adminID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).Where("id = ?", orderID).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrderNotFound
		}
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.PaidAt == nil {
			return fmt.Errorf("%w: order %s has not been paid", ErrInvalidState, order.Number)
		}
		if order.InvoiceID != nil {
			return fmt.Errorf("%w: order %s already has an invoice", ErrInvalidState, order.Number)
		}

		number, settings, err := NextInvoiceNumber(tx, time.Now())
		if err != nil {
			return err
		}
		now := time.Now()
		inv = models.Invoice{
			Number:          number,
			Status:          models.InvoicePaid,
			OrderID:         &order.ID,
			ClientNom:       order.ClientNom,
			ClientEmail:     order.ClientEmail,
			ClientPhone:     order.ClientPhone,
			ClientAddress:   order.ClientAddress,
			TotalHT:         order.TotalHT,
			TotalTVA:        order.TotalTVA,
			TotalTTC:        order.TotalTTC,
			AmountPaid:      order.TotalTTC,
			DueDate:         now,
			MentionsLegales: settings.MentionsLegales,
			SentAt:          &now,
			PaidAt:          order.PaidAt,
			CreatedBy:       adminID,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		payment := models.Payment{
			InvoiceID: &inv.ID,
			OrderID:   &order.ID,
			Montant:   order.TotalTTC,
			Date:      *order.PaidAt,
			Mode:      models.MethodCarte,
			Statut:    models.PaymentSucceeded,
			ChargeID:  order.ChargeID,
			Reference: order.ChargeID,
			CreatedBy: adminID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Model(&order).Update("invoice_id", inv.ID).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify("orders", "update", orderID)
	s.notify("invoices", "insert", inv.ID)
	return &inv, nil
}
