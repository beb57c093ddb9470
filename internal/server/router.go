package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/omega-sfx/omega-billing/internal/auth"
	"github.com/omega-sfx/omega-billing/internal/events"
	"github.com/omega-sfx/omega-billing/internal/handlers"
	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/ledger"
	"github.com/omega-sfx/omega-billing/internal/models"
	"github.com/omega-sfx/omega-billing/internal/processor"
	"github.com/omega-sfx/omega-billing/internal/refund"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, proc processor.Client) (http.Handler, error) {
	mux := http.NewServeMux()

	// RequireAuth re-checks that the session's user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	hub := events.NewHub()
	ledgerSvc := ledger.NewService(db, hub)
	refundSvc, err := refund.NewService(db, ledgerSvc, proc, hub)
	if err != nil {
		return nil, err
	}

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth endpoints
	authHandler := handlers.NewAuthHandler(db)
	authHandler.Register(mux)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAuth(h)
	}

	// Quote endpoints
	qh := handlers.NewQuoteHandler(ledgerSvc)
	mux.Handle("/quotes", protect(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			qh.List(w, r)
		case http.MethodPost:
			qh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/quotes/send", protect(qh.Send))
	mux.Handle("/quotes/accept", protect(qh.Accept))
	mux.Handle("/quotes/reject", protect(qh.Reject))
	mux.Handle("/quotes/convert", protect(qh.Convert))

	// Invoice endpoints
	ih := handlers.NewInvoiceHandler(db, ledgerSvc)
	mux.Handle("/invoices", protect(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ih.List(w, r)
		case http.MethodPost:
			ih.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/invoices/send", protect(ih.Send))
	mux.Handle("/invoices/cancel", protect(ih.Cancel))
	mux.Handle("/invoices/payments", protect(ih.RecordPayment))
	mux.Handle("/invoices/pdf", protect(ih.PDF))
	mux.Handle("/invoices/export.csv", protect(ih.ExportCSV))

	// Refunds (trusted relay: processor credentials never leave this side)
	rh := handlers.NewRefundHandler(refundSvc)
	mux.Handle("/invoices/refund", protect(rh.Handle))

	// Orders
	oh := handlers.NewOrderHandler(ledgerSvc)
	mux.Handle("/orders/convert", protect(oh.Convert))

	// Settings
	sh := handlers.NewSettingsHandler(db)
	mux.Handle("/settings", protect(sh.Handle))

	// Planning export
	ph := handlers.NewPlanningHandler()
	mux.Handle("/planning/pdf", protect(ph.PDF))

	// Advisory change stream for UI refresh
	mux.Handle("/events", protect(hub.ServeSSE))

	return auth.Middleware(withRecover(withLogging(mux))), nil
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
