package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeClient issues refunds through the Stripe API with a bounded timeout.
type StripeClient struct {
	timeout time.Duration
}

// NewStripeClient configures the global Stripe key and returns a client.
func NewStripeClient(secretKey string, timeout time.Duration) *StripeClient {
	stripe.Key = secretKey
	return &StripeClient{timeout: timeout}
}

func (c *StripeClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.RefundParams{
		Amount: stripe.Int64(toCents(req.Amount)),
		Reason: stripe.String(stripeReason(req.Reason)),
	}
	if IsPaymentIntent(req.ChargeID) {
		params.PaymentIntent = stripe.String(req.ChargeID)
	} else {
		params.Charge = stripe.String(req.ChargeID)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	// Free-text admin reason survives in metadata; the Reason field only
	// accepts Stripe's closed set.
	params.AddMetadata("admin_reason", req.Reason)

	r, err := refund.New(params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		var sErr *stripe.Error
		if errors.As(err, &sErr) {
			return nil, fmt.Errorf("%w: %s", ErrProviderDeclined, sErr.Msg)
		}
		return nil, err
	}

	res := &RefundResult{
		ProviderRefundID: r.ID,
		Status:           string(r.Status),
	}
	if r.PaymentIntent != nil {
		res.PaymentIntentID = r.PaymentIntent.ID
	}
	if r.LastResponse != nil {
		res.Raw = r.LastResponse.RawJSON
	}
	return res, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func stripeReason(reason string) string {
	switch reason {
	case "duplicate", "fraudulent", "requested_by_customer":
		return reason
	}
	return "requested_by_customer"
}
