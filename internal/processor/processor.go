// Package processor wraps the card payment provider. Secret credentials stay
// on this side of the wire: nothing in the storefront client ever talks to
// the provider directly for refunds.
package processor

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrProviderDeclined = errors.New("provider_declined")
	ErrProviderTimeout  = errors.New("provider_timeout")
)

// RefundRequest targets a previously captured charge or payment intent.
type RefundRequest struct {
	ChargeID       string
	Amount         float64 // EUR, converted to cents at the provider boundary
	Reason         string
	IdempotencyKey string
}

// RefundResult is the provider's answer for a submitted refund.
type RefundResult struct {
	ProviderRefundID string
	PaymentIntentID  string
	Status           string // provider-side status string
	Raw              []byte // raw provider payload, kept for audit
}

type Client interface {
	CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// IsChargeReference reports whether a stored reference can be targeted by a
// provider refund. Manual payments (bank transfer, cheque, cash) carry no
// such reference and are not refundable through this path.
func IsChargeReference(ref string) bool {
	return strings.HasPrefix(ref, "ch_") ||
		strings.HasPrefix(ref, "pi_") ||
		strings.HasPrefix(ref, "py_")
}

// IsPaymentIntent reports whether the reference is an intent id rather than a
// charge id; the two are submitted through different request fields.
func IsPaymentIntent(ref string) bool { return strings.HasPrefix(ref, "pi_") }
