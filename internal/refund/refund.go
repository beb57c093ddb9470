// Package refund reverses captured card payments through the payment
// provider without ever letting the refunded total exceed the invoice.
package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/events"
	"github.com/omega-sfx/omega-billing/internal/ledger"
	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/processor"
)

var (
	ErrNotRefundable     = errors.New("not_refundable")
	ErrNoChargeReference = errors.New("no_charge_reference")
	ErrAmountTooHigh     = errors.New("refund_amount_exceeds_balance")
	ErrInvalidAmount     = errors.New("invalid_refund_amount")
)

type Service struct {
	DB        *gorm.DB
	Ledger    *ledger.Service
	Processor processor.Client
	Hub       *events.Hub
	node      *snowflake.Node
}

func NewService(db *gorm.DB, lg *ledger.Service, pc processor.Client, hub *events.Hub) (*Service, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &Service{DB: db, Ledger: lg, Processor: pc, Hub: hub, node: node}, nil
}

// Context is what the admin refund dialog needs: the pre-filled refundable
// balance and the charge the provider will target.
type Context struct {
	InvoiceID        uint    `json:"invoice_id"`
	RefundableAmount float64 `json:"refundable_amount"`
	ChargeID         string  `json:"charge_id"`
	PaymentID        uint    `json:"payment_id"`
}

// Initiate checks the refund preconditions and returns the dialog context.
// ErrNotRefundable when the balance is exhausted; ErrNoChargeReference when
// no payment carries a provider reference (manual payments cannot be
// refunded through this path).
func (s *Service) Initiate(ctx context.Context, invoiceID uint) (*Context, error) {
	inv, err := s.Ledger.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, refunds, err := s.Ledger.MoneyRows(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	refundable := ledger.RefundableAmountOf(inv, payments, refunds)
	if refundable <= 0 {
		return nil, fmt.Errorf("%w: invoice %s is fully refunded", ErrNotRefundable, inv.Number)
	}
	charge := findChargePayment(payments)
	if charge == nil {
		return nil, fmt.Errorf("%w: invoice %s has no provider-backed payment", ErrNoChargeReference, inv.Number)
	}
	return &Context{
		InvoiceID:        inv.ID,
		RefundableAmount: refundable,
		ChargeID:         charge.ChargeID,
		PaymentID:        charge.ID,
	}, nil
}

func findChargePayment(payments []models.Payment) *models.Payment {
	for i := range payments {
		p := &payments[i]
		if p.Statut == models.PaymentSucceeded && p.Mode != models.MethodRefund && processor.IsChargeReference(p.ChargeID) {
			return p
		}
	}
	return nil
}

// SubmitInput is the admin's confirmed refund request.
type SubmitInput struct {
	InvoiceID uint
	ChargeID  string
	Amount    float64
	Reason    string
	Notes     string
	AdminID   uint
}

// Submit re-validates the whole request inside the transaction: the dialog's
// amount can be stale, and the charge id is client-supplied, so it must
// resolve to a succeeded payment row of this invoice before the provider is
// called. Then it calls the provider and records the Refund row plus its
// mirrored ledger row. On any provider failure nothing is written; the
// provider's message travels up wrapped for the admin to read.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Refund, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !processor.IsChargeReference(in.ChargeID) {
		return nil, fmt.Errorf("%w: %q", ErrNoChargeReference, in.ChargeID)
	}

	var created models.Refund
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Take the invoice row write lock before re-reading the refunded
		// total: two admins submitting at once serialize here, so the second
		// sees the first's rows and cannot jointly exceed the balance.
		res := tx.Model(&models.Invoice{}).Where("id = ?", in.InvoiceID).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrInvoiceNotFound
		}
		var inv models.Invoice
		if err := tx.First(&inv, in.InvoiceID).Error; err != nil {
			return err
		}
		var payments []models.Payment
		if err := tx.Where("invoice_id = ?", inv.ID).Find(&payments).Error; err != nil {
			return err
		}
		var refunds []models.Refund
		if err := tx.Where("invoice_id = ?", inv.ID).Find(&refunds).Error; err != nil {
			return err
		}
		// The submitted charge id must be one of this invoice's own captures;
		// a foreign or fabricated reference never reaches the provider.
		var charge *models.Payment
		for i := range payments {
			p := &payments[i]
			if p.Statut == models.PaymentSucceeded && p.Mode != models.MethodRefund && p.ChargeID == in.ChargeID {
				charge = p
				break
			}
		}
		if charge == nil {
			return fmt.Errorf("%w: %q is not a capture of invoice %s", ErrNoChargeReference, in.ChargeID, inv.Number)
		}
		refundable := ledger.RefundableAmountOf(&inv, payments, refunds)
		if refundable <= 0 {
			return fmt.Errorf("%w: invoice %s is fully refunded", ErrNotRefundable, inv.Number)
		}
		if in.Amount > refundable+0.005 {
			return fmt.Errorf("%w: %.2f requested, %.2f refundable", ErrAmountTooHigh, in.Amount, refundable)
		}

		key := "refund-" + s.node.Generate().String()
		result, err := s.Processor.CreateRefund(ctx, processor.RefundRequest{
			ChargeID:       in.ChargeID,
			Amount:         in.Amount,
			Reason:         in.Reason,
			IdempotencyKey: key,
		})
		if err != nil {
			log.Error().Err(err).Uint("invoice_id", inv.ID).Str("charge_id", in.ChargeID).Msg("provider refund failed")
			return fmt.Errorf("provider refund: %w", err)
		}

		created = models.Refund{
			InvoiceID:        &inv.ID,
			OrderID:          inv.OrderID,
			ProviderRefundID: result.ProviderRefundID,
			PaymentIntentID:  result.PaymentIntentID,
			Montant:          in.Amount,
			Reason:           in.Reason,
			Status:           models.RefundSucceeded,
			AdminNotes:       in.Notes,
			IdempotencyKey:   key,
			RawResponse:      datatypes.JSON(result.Raw),
			CreatedBy:        in.AdminID,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		// Mirrored ledger row, linked so the refunded total counts the pair once.
		mirror := models.Payment{
			InvoiceID: &inv.ID,
			OrderID:   inv.OrderID,
			Montant:   in.Amount,
			Date:      time.Now(),
			Mode:      models.MethodRefund,
			Statut:    models.PaymentSucceeded,
			Reference: result.ProviderRefundID,
			ChargeID:  in.ChargeID,
			RefundID:  &created.ID,
			CreatedBy: in.AdminID,
		}
		if err := tx.Create(&mirror).Error; err != nil {
			return err
		}
		if in.Amount >= refundable-0.005 && inv.Status != models.InvoiceRefunded {
			if err := tx.Model(&inv).Update("status", models.InvoiceRefunded).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Hub != nil {
		s.Hub.Publish(events.Event{Table: "refunds", Action: "insert", ID: created.ID})
		s.Hub.Publish(events.Event{Table: "invoices", Action: "update", ID: in.InvoiceID})
	}
	log.Info().Uint("invoice_id", in.InvoiceID).Float64("amount", in.Amount).Str("provider_refund_id", created.ProviderRefundID).Msg("refund recorded")
	return &created, nil
}
