package refund

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/omega-sfx/omega-billing/internal/db"
	"github.com/omega-sfx/omega-billing/internal/ledger"
	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/processor"
)

// fakeProcessor records the requests it receives and answers from a script.
type fakeProcessor struct {
	calls []processor.RefundRequest
	err   error
}

func (f *fakeProcessor) CreateRefund(_ context.Context, req processor.RefundRequest) (*processor.RefundResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &processor.RefundResult{
		ProviderRefundID: "re_test_1",
		PaymentIntentID:  "pi_test_1",
		Raw:              []byte(`{"id":"re_test_1","status":"succeeded"}`),
	}, nil
}

func setupRefundTest(t *testing.T) (*Service, *fakeProcessor, *ledger.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(d); err != nil {
		t.Fatal(err)
	}
	if err := d.Create(&models.BillingSettings{
		ID: models.BillingSettingsID, RaisonSociale: "OMEGA", InvoicePrefix: "FAC", QuotePrefix: "DEV",
		DefaultPaymentTermsDays: 30,
	}).Error; err != nil {
		t.Fatal(err)
	}
	lg := ledger.NewService(d, nil)
	fp := &fakeProcessor{}
	s, err := NewService(d, lg, fp, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s, fp, lg
}

// cardPaidInvoice persists a sent invoice settled by card with a charge
// reference, the normal refund target.
func cardPaidInvoice(t *testing.T, d *gorm.DB, ttc float64) *models.Invoice {
	t.Helper()
	now := time.Now()
	inv := models.Invoice{
		Number: fmt.Sprintf("FAC-2026-%05d", time.Now().UnixNano()%100000),
		Status: models.InvoicePaid, ClientNom: "Studio Pyro",
		TotalHT: ttc / 1.2, TotalTVA: ttc - ttc/1.2, TotalTTC: ttc,
		AmountPaid: ttc, DueDate: now, PaidAt: &now,
	}
	if err := d.Create(&inv).Error; err != nil {
		t.Fatal(err)
	}
	payment := models.Payment{
		InvoiceID: &inv.ID, Montant: ttc, Date: now,
		Mode: models.MethodCarte, Statut: models.PaymentSucceeded,
		ChargeID: "ch_3QXtest", Reference: "ch_3QXtest",
	}
	if err := d.Create(&payment).Error; err != nil {
		t.Fatal(err)
	}
	return &inv
}

func TestInitiateReturnsRefundContext(t *testing.T) {
	s, _, _ := setupRefundTest(t)
	inv := cardPaidInvoice(t, s.DB, 100.00)

	rc, err := s.Initiate(context.Background(), inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rc.RefundableAmount != 100.00 {
		t.Fatalf("refundable = %.2f, want 100.00", rc.RefundableAmount)
	}
	if rc.ChargeID != "ch_3QXtest" {
		t.Fatalf("charge = %s", rc.ChargeID)
	}
}

func TestInitiateRejectsManualOnlyInvoice(t *testing.T) {
	s, _, _ := setupRefundTest(t)
	now := time.Now()
	inv := models.Invoice{Number: "FAC-2026-90001", Status: models.InvoicePaid, ClientNom: "Client", TotalTTC: 50, AmountPaid: 50, DueDate: now}
	if err := s.DB.Create(&inv).Error; err != nil {
		t.Fatal(err)
	}
	payment := models.Payment{InvoiceID: &inv.ID, Montant: 50, Date: now, Mode: models.MethodVirement, Statut: models.PaymentSucceeded, Reference: "VIR-42"}
	if err := s.DB.Create(&payment).Error; err != nil {
		t.Fatal(err)
	}

	_, err := s.Initiate(context.Background(), inv.ID)
	if !errors.Is(err, ErrNoChargeReference) {
		t.Fatalf("got %v, want no charge reference", err)
	}
}

func TestSubmitWritesRefundAndMirrorRow(t *testing.T) {
	s, fp, lg := setupRefundTest(t)
	inv := cardPaidInvoice(t, s.DB, 100.00)
	ctx := context.Background()

	created, err := s.Submit(ctx, SubmitInput{
		InvoiceID: inv.ID, ChargeID: "ch_3QXtest", Amount: 30.00,
		Reason: "requested_by_customer", Notes: "geste commercial", AdminID: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.Status != models.RefundSucceeded || created.ProviderRefundID != "re_test_1" {
		t.Fatalf("refund row: %+v", created)
	}
	if created.IdempotencyKey == "" {
		t.Fatal("idempotency key missing")
	}
	if len(fp.calls) != 1 || fp.calls[0].Amount != 30.00 || fp.calls[0].ChargeID != "ch_3QXtest" {
		t.Fatalf("provider calls: %+v", fp.calls)
	}

	var mirror models.Payment
	if err := s.DB.Where("mode = ?", models.MethodRefund).First(&mirror).Error; err != nil {
		t.Fatal(err)
	}
	if mirror.RefundID == nil || *mirror.RefundID != created.ID {
		t.Fatalf("mirror link = %v", mirror.RefundID)
	}

	// The pair counts once in the shared status.
	after, err := lg.Get(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	st, err := lg.StatusFor(ctx, after)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalRefunded != 30.00 {
		t.Fatalf("total refunded = %.2f, want 30.00", st.TotalRefunded)
	}
	if !st.HasPartialRefund {
		t.Fatalf("expected partial refund: %+v", st)
	}
	if after.Status == models.InvoiceRefunded {
		t.Fatal("partial refund must not flip status to refunded")
	}
}

func TestSubmitRejectsAmountAboveBalance(t *testing.T) {
	s, fp, _ := setupRefundTest(t)
	inv := cardPaidInvoice(t, s.DB, 100.00)
	ctx := context.Background()

	if _, err := s.Submit(ctx, SubmitInput{InvoiceID: inv.ID, ChargeID: "ch_3QXtest", Amount: 30.00, AdminID: 1}); err != nil {
		t.Fatal(err)
	}
	// dialog pre-filled with a stale balance: 80 > remaining 70
	_, err := s.Submit(ctx, SubmitInput{InvoiceID: inv.ID, ChargeID: "ch_3QXtest", Amount: 80.00, AdminID: 1})
	if !errors.Is(err, ErrAmountTooHigh) {
		t.Fatalf("got %v, want amount too high", err)
	}
	if len(fp.calls) != 1 {
		t.Fatalf("provider reached on rejected amount: %d calls", len(fp.calls))
	}
	var count int64
	s.DB.Model(&models.Refund{}).Count(&count)
	if count != 1 {
		t.Fatalf("refund rows = %d, want 1", count)
	}
}

func TestSubmitExactRemainingFlipsStatusRefunded(t *testing.T) {
	s, _, lg := setupRefundTest(t)
	inv := cardPaidInvoice(t, s.DB, 100.00)
	ctx := context.Background()

	if _, err := s.Submit(ctx, SubmitInput{InvoiceID: inv.ID, ChargeID: "ch_3QXtest", Amount: 30.00, AdminID: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(ctx, SubmitInput{InvoiceID: inv.ID, ChargeID: "ch_3QXtest", Amount: 70.00, AdminID: 1}); err != nil {
		t.Fatal(err)
	}
	after, _ := lg.Get(ctx, inv.ID)
	if after.Status != models.InvoiceRefunded {
		t.Fatalf("status = %s, want refunded", after.Status)
	}
	// balance exhausted
	if _, err := s.Initiate(ctx, inv.ID); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("got %v, want not refundable", err)
	}
}

func TestSubmitRejectsChargeNotBelongingToInvoice(t *testing.T) {
	s, fp, lg := setupRefundTest(t)
	ctx := context.Background()

	// Invoice settled by bank transfer only: no capture to target, whatever
	// reference the client submits.
	now := time.Now()
	manual := models.Invoice{Number: "FAC-2026-90002", Status: models.InvoicePaid, ClientNom: "Client", TotalTTC: 80, AmountPaid: 80, DueDate: now}
	if err := s.DB.Create(&manual).Error; err != nil {
		t.Fatal(err)
	}
	virement := models.Payment{InvoiceID: &manual.ID, Montant: 80, Date: now, Mode: models.MethodVirement, Statut: models.PaymentSucceeded, Reference: "VIR-80"}
	if err := s.DB.Create(&virement).Error; err != nil {
		t.Fatal(err)
	}
	// Another invoice's real capture, submitted against the manual one.
	other := cardPaidInvoice(t, s.DB, 200.00)

	_, err := s.Submit(ctx, SubmitInput{InvoiceID: manual.ID, ChargeID: "ch_3QXtest", Amount: 50.00, AdminID: 1})
	if !errors.Is(err, ErrNoChargeReference) {
		t.Fatalf("foreign charge accepted: got %v", err)
	}
	// A well-formed but unknown reference is rejected the same way.
	_, err = s.Submit(ctx, SubmitInput{InvoiceID: other.ID, ChargeID: "ch_fabricated", Amount: 50.00, AdminID: 1})
	if !errors.Is(err, ErrNoChargeReference) {
		t.Fatalf("fabricated charge accepted: got %v", err)
	}
	if len(fp.calls) != 0 {
		t.Fatalf("provider reached with a charge the invoice does not own: %d calls", len(fp.calls))
	}
	var count int64
	s.DB.Model(&models.Refund{}).Count(&count)
	if count != 0 {
		t.Fatalf("refund rows written: %d", count)
	}
	after, _ := lg.Get(ctx, manual.ID)
	if after.Status != models.InvoicePaid {
		t.Fatalf("manual invoice status changed to %s", after.Status)
	}
}

func TestSubmitProviderFailureWritesNothing(t *testing.T) {
	s, fp, lg := setupRefundTest(t)
	inv := cardPaidInvoice(t, s.DB, 100.00)
	fp.err = fmt.Errorf("%w: card_declined", processor.ErrProviderDeclined)

	_, err := s.Submit(context.Background(), SubmitInput{InvoiceID: inv.ID, ChargeID: "ch_3QXtest", Amount: 50.00, AdminID: 1})
	if !errors.Is(err, processor.ErrProviderDeclined) {
		t.Fatalf("got %v, want provider declined", err)
	}
	var refunds, mirrors int64
	s.DB.Model(&models.Refund{}).Count(&refunds)
	s.DB.Model(&models.Payment{}).Where("mode = ?", models.MethodRefund).Count(&mirrors)
	if refunds != 0 || mirrors != 0 {
		t.Fatalf("rows written despite provider failure: refunds=%d mirrors=%d", refunds, mirrors)
	}
	after, _ := lg.Get(context.Background(), inv.ID)
	if after.Status != models.InvoicePaid {
		t.Fatalf("status changed to %s", after.Status)
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	s, _, _ := setupRefundTest(t)
	ctx := context.Background()
	if _, err := s.Submit(ctx, SubmitInput{InvoiceID: 1, ChargeID: "ch_x", Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if _, err := s.Submit(ctx, SubmitInput{InvoiceID: 1, ChargeID: "tok_visa", Amount: 10}); !errors.Is(err, ErrNoChargeReference) {
		t.Fatalf("bad reference: got %v", err)
	}
	if _, err := s.Submit(ctx, SubmitInput{InvoiceID: 999, ChargeID: "ch_x", Amount: 10}); !errors.Is(err, ledger.ErrInvoiceNotFound) {
		t.Fatalf("missing invoice: got %v", err)
	}
}
