package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/validation"
)

// GetQuote loads one quote with its items.
func (s *Service) GetQuote(ctx context.Context, id uint) (*models.Quote, error) {
	var q models.Quote
	if err := s.DB.WithContext(ctx).Preload("Items").First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	return &q, nil
}

// ListQuotes returns quotes newest-first, optionally filtered by status.
func (s *Service) ListQuotes(ctx context.Context, status models.QuoteStatus) ([]models.Quote, error) {
	q := s.DB.WithContext(ctx).Model(&models.Quote{})
	if status != "" {
		if !status.Valid() {
			return nil, validationErr(validation.Violations{"status": "out_of_range"})
		}
		q = q.Where("status = ?", status)
	}
	var quotes []models.Quote
	if err := q.Preload("Items").Order("created_at desc, id desc").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return quotes, nil
}

// CreateQuote creates a draft devis with computed totals and an allocated
// number.
func (s *Service) CreateQuote(ctx context.Context, customer CustomerInput, items []ItemInput, validUntil time.Time, notes string, adminID uint) (*models.Quote, error) {
	v := validateItems(items)
	validation.Required("nom", customer.Nom, v)
	if !v.Empty() {
		return nil, validationErr(v)
	}
	if validUntil.IsZero() {
		validUntil = time.Now().AddDate(0, 1, 0)
	}

	rows := make([]models.QuoteItem, 0, len(items))
	var ht, tva float64
	for i, it := range items {
		lineHT := round2(float64(it.Quantity) * it.PrixUnitaireHT)
		lineTTC := round2(lineHT * (1 + it.TauxTVA/100))
		rows = append(rows, models.QuoteItem{
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

	var quote models.Quote
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, _, err := NextQuoteNumber(tx, time.Now())
		if err != nil {
			return err
		}
		quote = models.Quote{
			Number:        number,
			Status:        models.QuoteDraft,
			ClientNom:     customer.Nom,
			ClientEmail:   customer.Email,
			ClientPhone:   customer.Phone,
			ClientAddress: customer.Address,
			TotalHT:       ht,
			TotalTVA:      tva,
			TotalTTC:      round2(ht + tva),
			ValidUntil:    validUntil,
			Notes:         notes,
			CreatedBy:     adminID,
		}
		if err := tx.Create(&quote).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].QuoteID = quote.ID
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		quote.Items = rows
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}
	s.notify("quotes", "insert", quote.ID)
	return &quote, nil
}

// transitionQuote flips the status after checking the allowed source states.
func (s *Service) transitionQuote(ctx context.Context, id uint, to models.QuoteStatus, from ...models.QuoteStatus) (*models.Quote, error) {
	q, err := s.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		if q.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: quote %s cannot move from %s to %s", ErrInvalidState, q.Number, q.Status, to)
	}
	if err := s.DB.WithContext(ctx).Model(q).Update("status", to).Error; err != nil {
		return nil, err
	}
	q.Status = to
	s.notify("quotes", "update", q.ID)
	return q, nil
}

func (s *Service) SendQuote(ctx context.Context, id uint) (*models.Quote, error) {
	return s.transitionQuote(ctx, id, models.QuoteSent, models.QuoteDraft)
}

func (s *Service) AcceptQuote(ctx context.Context, id uint) (*models.Quote, error) {
	return s.transitionQuote(ctx, id, models.QuoteAccepted, models.QuoteSent)
}

func (s *Service) RejectQuote(ctx context.Context, id uint) (*models.Quote, error) {
	return s.transitionQuote(ctx, id, models.QuoteRejected, models.QuoteSent)
}

// ExpireQuotes flips draft and sent quotes past their validity deadline.
func (s *Service) ExpireQuotes(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Quote{}).
		Where("status IN ? AND valid_until < ?", []models.QuoteStatus{models.QuoteDraft, models.QuoteSent}, time.Now()).
		Update("status", models.QuoteExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.notify("quotes", "update", 0)
	}
	return res.RowsAffected, nil
}
