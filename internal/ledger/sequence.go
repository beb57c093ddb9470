package ledger

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/models"
)

// Document numbers come from persisted counters on the settings singleton.
// The increment is a single UPDATE inside the caller's transaction: the
// statement acquires the row write lock, so two admins allocating at the
// same time serialize and never see the same value. Gaps are acceptable
// (a failed creation burns its number); duplicates are not.

func nextNumber(tx *gorm.DB, column string, format func(*models.BillingSettings) string) (string, *models.BillingSettings, error) {
	res := tx.Model(&models.BillingSettings{}).
		Where("id = ?", models.BillingSettingsID).
		Update(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return "", nil, fmt.Errorf("bump %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", nil, ErrSettingsNotFound
	}
	var settings models.BillingSettings
	if err := tx.First(&settings, models.BillingSettingsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrSettingsNotFound
		}
		return "", nil, err
	}
	return format(&settings), &settings, nil
}

// NextInvoiceNumber allocates the next invoice number, e.g. FAC-2026-00118.
func NextInvoiceNumber(tx *gorm.DB, now time.Time) (string, *models.BillingSettings, error) {
	return nextNumber(tx, "invoice_seq", func(s *models.BillingSettings) string {
		return fmt.Sprintf("%s-%d-%05d", s.InvoicePrefix, now.Year(), s.InvoiceSeq)
	})
}

// NextQuoteNumber allocates the next quote number, e.g. DEV-2026-00042.
func NextQuoteNumber(tx *gorm.DB, now time.Time) (string, *models.BillingSettings, error) {
	return nextNumber(tx, "quote_seq", func(s *models.BillingSettings) string {
		return fmt.Sprintf("%s-%d-%05d", s.QuotePrefix, now.Year(), s.QuoteSeq)
	})
}
