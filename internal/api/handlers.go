package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/finance-core/internal/finance"
	"github.com/example/finance-core/internal/integration"
	"github.com/example/finance-core/internal/security"
	"github.com/example/finance-core/internal/store"
)

type createInvoiceResponse struct {
	CorrelationID string         `json:"correlation_id"`
	Invoice       *store.Invoice `json:"invoice"`
}

type checkUserResponse struct {
	CorrelationID string                    `json:"correlation_id"`
	Registered    bool                      `json:"registered"`
	User          *integration.EInvoiceUser `json:"user,omitempty"`
}

type summaryResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Summary       *finance.Summary `json:"summary"`
}

// writeFinanceError maps the finance error taxonomy onto HTTP statuses.
func writeFinanceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, finance.ErrValidation):
		security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, finance.ErrNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, finance.ErrInvalidState):
		security.WriteJSONError(w, r, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, finance.ErrIntegrationUnavailable):
		security.WriteJSONError(w, r, http.StatusBadGateway, "integration_unavailable", "external integration unavailable")
	default:
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error", "")
	}
}

func handleCreateInvoice(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Invoices == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "finance_unavailable", "")
			return
		}

		var in finance.CreateInvoiceInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", "")
			return
		}

		inv, err := deps.Invoices.CreateInvoice(r.Context(), in)
		if err != nil {
			writeFinanceError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, createInvoiceResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Invoice:       inv,
		})
	}
}

func handleApproveInvoice(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Invoices == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "finance_unavailable", "")
			return
		}

		invoiceID := chi.URLParam(r, "invoice_id")
		var body struct {
			ApprovedBy string `json:"approved_by"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		result, err := deps.Invoices.Approve(r.Context(), invoiceID, body.ApprovedBy)
		if err != nil {
			writeFinanceError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, result)
	}
}

func handleSendEInvoice(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.EInvoices == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "einvoice_unavailable", "")
			return
		}

		result, err := deps.EInvoices.Send(r.Context(), chi.URLParam(r, "invoice_id"), r.URL.Query().Get("provider"))
		if err != nil {
			writeFinanceError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, result)
	}
}

func handleCheckEInvoiceUser(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.EInvoices == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "einvoice_unavailable", "")
			return
		}

		taxID := chi.URLParam(r, "tax_id")
		organizationID := r.URL.Query().Get("organization_id")

		user, err := deps.EInvoices.CheckUser(r.Context(), organizationID, taxID, r.URL.Query().Get("provider"))
		if err != nil {
			writeFinanceError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, checkUserResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Registered:    user != nil,
			User:          user,
		})
	}
}

func handleBankSync(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.BankSync == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "banking_unavailable", "")
			return
		}

		var in finance.SyncInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", "")
			return
		}
		if v := r.URL.Query().Get("lookback_days"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				in.LookbackDays = i
			}
		}

		result, err := deps.BankSync.Sync(r.Context(), in)
		if err != nil {
			writeFinanceError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, result)
	}
}

func handleFinancialSummary(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Summary == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "finance_unavailable", "")
			return
		}

		organizationID := r.URL.Query().Get("organization_id")
		if organizationID == "" {
			security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error", "organization_id is required")
			return
		}

		writeJSON(w, r, http.StatusOK, summaryResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Summary:       deps.Summary.GetFinancialSummary(r.Context(), organizationID),
		})
	}
}
