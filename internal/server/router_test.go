package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/omega-sfx/omega-billing/internal/db"
	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/processor"
)

type stubProcessor struct{}

func (stubProcessor) CreateRefund(_ context.Context, req processor.RefundRequest) (*processor.RefundResult, error) {
	return &processor.RefundResult{
		ProviderRefundID: "re_stub",
		Raw:              []byte(fmt.Sprintf(`{"id":"re_stub","amount":%d}`, int(req.Amount*100))),
	}, nil
}

func setupServer(t *testing.T) (*httptest.Server, *http.Client, *gorm.DB) {
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
		ID: models.BillingSettingsID, RaisonSociale: "OMEGA Effets Spéciaux",
		InvoicePrefix: "FAC", QuotePrefix: "DEV", DefaultPaymentTermsDays: 30,
	}).Error; err != nil {
		t.Fatal(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Create(&models.User{Email: "admin@omega.local", Password: string(hash)}).Error; err != nil {
		t.Fatal(err)
	}

	handler, err := New(d, stubProcessor{})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return ts, &http.Client{Jar: jar}, d
}

func login(t *testing.T, ts *httptest.Server, client *http.Client) {
	t.Helper()
	body := `{"email":"admin@omega.local","password":"secret"}`
	resp, err := client.Post(ts.URL+"/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func postJSON(t *testing.T, client *http.Client, url string, payload any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		t.Fatal(err)
	}
	resp, err := client.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatal(err)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	ts, _, _ := setupServer(t)
	for _, path := range []string{"/invoices", "/quotes", "/settings", "/invoices/refund?id=1"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s without auth: status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestLoginBadCredentials(t *testing.T) {
	ts, client, _ := setupServer(t)
	resp := postJSON(t, client, ts.URL+"/login", map[string]string{"email": "admin@omega.local", "password": "wrong"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	ts, client, _ := setupServer(t)
	login(t, ts, client)

	createBody := map[string]any{
		"customer": map[string]string{"nom": "Studio Pyro", "email": "contact@pyro.example"},
		"items": []map[string]any{
			{"description": "Machine à fumée", "quantity": 2, "prix_unitaire_ht": 40.0, "taux_tva": 20.0},
			{"description": "Gerbe d'étincelles", "quantity": 1, "prix_unitaire_ht": 20.0, "taux_tva": 20.0},
		},
	}
	resp := postJSON(t, client, ts.URL+"/invoices", createBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var inv models.Invoice
	decode(t, resp, &inv)
	if inv.TotalTTC != 120.00 || !strings.HasPrefix(inv.Number, "FAC-") {
		t.Fatalf("created invoice: ttc=%.2f number=%s", inv.TotalTTC, inv.Number)
	}

	resp = postJSON(t, client, fmt.Sprintf("%s/invoices/send?id=%d", ts.URL, inv.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, client, fmt.Sprintf("%s/invoices/payments?id=%d", ts.URL, inv.ID), map[string]any{
		"montant": 120.0, "mode": "virement", "reference": "VIR-117",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("payment status = %d", resp.StatusCode)
	}
	var payResp struct {
		Invoice models.Invoice `json:"invoice"`
	}
	decode(t, resp, &payResp)
	if payResp.Invoice.Status != models.InvoicePaid {
		t.Fatalf("invoice status = %s, want paid", payResp.Invoice.Status)
	}

	// settled invoices refuse cancellation
	resp = postJSON(t, client, fmt.Sprintf("%s/invoices/cancel?id=%d", ts.URL, inv.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel paid status = %d, want 409", resp.StatusCode)
	}
}

func TestQuoteToInvoiceOverHTTP(t *testing.T) {
	ts, client, _ := setupServer(t)
	login(t, ts, client)

	resp := postJSON(t, client, ts.URL+"/quotes", map[string]any{
		"customer": map[string]string{"nom": "Théâtre des Lumières"},
		"items": []map[string]any{
			{"description": "Brouillard scénique", "quantity": 1, "prix_unitaire_ht": 300.0, "taux_tva": 20.0},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("quote create status = %d", resp.StatusCode)
	}
	var q models.Quote
	decode(t, resp, &q)

	for _, step := range []string{"send", "accept"} {
		resp = postJSON(t, client, fmt.Sprintf("%s/quotes/%s?id=%d", ts.URL, step, q.ID), nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("quote %s status = %d", step, resp.StatusCode)
		}
	}

	resp = postJSON(t, client, fmt.Sprintf("%s/quotes/convert?id=%d", ts.URL, q.ID), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("convert status = %d", resp.StatusCode)
	}
	var inv models.Invoice
	decode(t, resp, &inv)
	if inv.Status != models.InvoiceSent || inv.TotalTTC != 360.00 {
		t.Fatalf("converted invoice: status=%s ttc=%.2f", inv.Status, inv.TotalTTC)
	}

	// conversion is one-way
	resp = postJSON(t, client, fmt.Sprintf("%s/quotes/convert?id=%d", ts.URL, q.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second convert status = %d, want 409", resp.StatusCode)
	}
}

func TestRefundFlowOverHTTP(t *testing.T) {
	ts, client, d := setupServer(t)
	login(t, ts, client)

	paidAt := time.Now().Add(-time.Hour)
	order := models.Order{
		Number: "CMD-2026-00008", ClientNom: "Cirque Aérien",
		TotalHT: 100.00, TotalTVA: 20.00, TotalTTC: 120.00,
		ChargeID: "ch_3QXorder", PaidAt: &paidAt,
	}
	if err := d.Create(&order).Error; err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, client, fmt.Sprintf("%s/orders/convert?id=%d", ts.URL, order.ID), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("order convert status = %d", resp.StatusCode)
	}
	var inv models.Invoice
	decode(t, resp, &inv)

	initResp, err := client.Get(fmt.Sprintf("%s/invoices/refund?id=%d", ts.URL, inv.ID))
	if err != nil {
		t.Fatal(err)
	}
	if initResp.StatusCode != http.StatusOK {
		t.Fatalf("refund initiate status = %d", initResp.StatusCode)
	}
	var rc struct {
		RefundableAmount float64 `json:"refundable_amount"`
		ChargeID         string  `json:"charge_id"`
	}
	decode(t, initResp, &rc)
	if rc.RefundableAmount != 120.00 || rc.ChargeID != "ch_3QXorder" {
		t.Fatalf("refund context: %+v", rc)
	}

	// over-balance rejected
	resp = postJSON(t, client, fmt.Sprintf("%s/invoices/refund?id=%d", ts.URL, inv.ID), map[string]any{
		"charge_id": rc.ChargeID, "montant": 150.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("over-balance status = %d, want 422", resp.StatusCode)
	}

	resp = postJSON(t, client, fmt.Sprintf("%s/invoices/refund?id=%d", ts.URL, inv.ID), map[string]any{
		"charge_id": rc.ChargeID, "montant": 120.0, "reason": "requested_by_customer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("refund submit status = %d", resp.StatusCode)
	}
	var created models.Refund
	decode(t, resp, &created)
	if created.ProviderRefundID != "re_stub" {
		t.Fatalf("provider refund id = %s", created.ProviderRefundID)
	}

	var after models.Invoice
	if err := d.First(&after, inv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if after.Status != models.InvoiceRefunded {
		t.Fatalf("invoice status = %s, want refunded", after.Status)
	}
}

func TestCSVAndPDFExports(t *testing.T) {
	ts, client, _ := setupServer(t)
	login(t, ts, client)

	resp := postJSON(t, client, ts.URL+"/invoices", map[string]any{
		"customer": map[string]string{"nom": "Studio Pyro"},
		"items":    []map[string]any{{"description": "Pluie d'étincelles", "quantity": 1, "prix_unitaire_ht": 100.0, "taux_tva": 20.0}},
	})
	var inv models.Invoice
	decode(t, resp, &inv)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/invoices/export.csv", nil)
	req.Header.Set("Accept-Language", "fr")
	csvResp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(csvResp.Body)
	csvResp.Body.Close()
	if ct := csvResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("csv content type = %s", ct)
	}
	if !strings.Contains(string(body), inv.Number) || !strings.Contains(string(body), "Brouillon") {
		t.Fatalf("csv body missing expected content:\n%s", body)
	}

	pdfResp, err := client.Get(fmt.Sprintf("%s/invoices/pdf?id=%d", ts.URL, inv.ID))
	if err != nil {
		t.Fatal(err)
	}
	pdfBody, _ := io.ReadAll(pdfResp.Body)
	pdfResp.Body.Close()
	if pdfResp.StatusCode != http.StatusOK {
		t.Fatalf("pdf status = %d", pdfResp.StatusCode)
	}
	if !bytes.HasPrefix(pdfBody, []byte("%PDF")) {
		t.Fatal("pdf body missing %PDF header")
	}
}

func TestSettingsUpsertKeepsCounters(t *testing.T) {
	ts, client, d := setupServer(t)
	login(t, ts, client)

	// burn a number so the counter is non-zero
	resp := postJSON(t, client, ts.URL+"/invoices", map[string]any{
		"customer": map[string]string{"nom": "Studio Pyro"},
		"items":    []map[string]any{{"description": "Fumée", "quantity": 1, "prix_unitaire_ht": 10.0, "taux_tva": 20.0}},
	})
	resp.Body.Close()

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]any{
		"raison_sociale": "OMEGA SFX SARL", "adresse": "Lyon", "invoice_prefix": "FAC",
	})
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/settings", &buf)
	req.Header.Set("Content-Type", "application/json")
	putResp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	putResp.Body.Close()
	if putResp.StatusCode != http.StatusOK {
		t.Fatalf("settings put status = %d", putResp.StatusCode)
	}

	var settings models.BillingSettings
	if err := d.First(&settings, models.BillingSettingsID).Error; err != nil {
		t.Fatal(err)
	}
	if settings.RaisonSociale != "OMEGA SFX SARL" {
		t.Fatalf("raison sociale = %s", settings.RaisonSociale)
	}
	if settings.InvoiceSeq != 1 {
		t.Fatalf("invoice counter reset by settings update: %d", settings.InvoiceSeq)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, _, _ := setupServer(t)
	for _, path := range []string{"/health", "/healthz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}
