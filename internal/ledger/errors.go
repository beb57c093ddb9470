package ledger

import (
	"errors"
	"fmt"

	"github.com/omega-sfx/omega-billing/internal/validation"
)

var (
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrQuoteNotFound    = errors.New("quote_not_found")
	ErrOrderNotFound    = errors.New("order_not_found")
	ErrInvalidState     = errors.New("invalid_state")
	ErrSettingsNotFound = errors.New("billing_settings_not_found")
)

// ValidationError carries field-level violations for malformed input. It is
// raised before any persistence call.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", map[string]string(e.Violations))
}

func validationErr(v validation.Violations) error {
	return &ValidationError{Violations: v}
}
