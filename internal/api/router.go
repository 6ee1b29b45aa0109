// Package api exposes the finance engine over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/finance-core/internal/finance"
	"github.com/example/finance-core/internal/integration"
	"github.com/example/finance-core/internal/security"
	"github.com/example/finance-core/internal/store"
	"github.com/example/finance-core/pkg/audit"
)

type Auditor interface {
	Record(ctx context.Context, eventType audit.EventType, subject string, attrs map[string]string) audit.Entry
}

type Dependencies struct {
	Logger *slog.Logger

	Invoices interface {
		CreateInvoice(ctx context.Context, in finance.CreateInvoiceInput) (*store.Invoice, error)
		Approve(ctx context.Context, invoiceID, userID string) (*finance.ApprovalResult, error)
	}
	EInvoices interface {
		Send(ctx context.Context, invoiceID, providerName string) (*finance.DispatchResult, error)
		CheckUser(ctx context.Context, organizationID, taxID, providerName string) (*integration.EInvoiceUser, error)
	}
	BankSync interface {
		Sync(ctx context.Context, in finance.SyncInput) (*finance.SyncResult, error)
	}
	Summary interface {
		GetFinancialSummary(ctx context.Context, organizationID string) *finance.Summary
	}

	Auditor      Auditor
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", handleCreateInvoice(deps))
			r.Post("/{invoice_id}/approve", handleApproveInvoice(deps))
			r.Post("/{invoice_id}/einvoice", handleSendEInvoice(deps))
		})

		r.Get("/einvoice/users/{tax_id}", handleCheckEInvoiceUser(deps))
		r.Post("/bank/sync", handleBankSync(deps))
		r.Get("/finance/summary", handleFinancialSummary(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found", "")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	return r
}
