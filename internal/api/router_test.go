package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/finance-core/internal/finance"
	"github.com/example/finance-core/internal/integration"
	"github.com/example/finance-core/internal/security"
	"github.com/example/finance-core/internal/store"
	"github.com/example/finance-core/pkg/audit"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore, *audit.Trail) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.NewSQLiteStore(db)
	require.NoError(t, st.Migrate(context.Background()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory := integration.NewDirectory()
	trail := audit.NewTrail()
	trail.Correlate = security.CorrelationIDFromContext

	dispatcher := finance.NewDispatcher(st, directory, "sandbox", trail, logger)
	service := finance.NewService(st, dispatcher, trail, logger)
	importer := finance.NewImporter(st, directory, trail, logger)
	aggregator := finance.NewAggregator(st, logger)

	router := NewRouter(Dependencies{
		Logger:       logger,
		Invoices:     service,
		EInvoices:    dispatcher,
		BankSync:     importer,
		Summary:      aggregator,
		Auditor:      trail,
		MaxBodyBytes: 1 << 20,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st, trail
}

func seedAccount(t *testing.T, st *store.SQLiteStore, organizationID string) string {
	t.Helper()
	id := "acc-" + organizationID
	_, err := st.DB.Exec(`
		INSERT INTO accounts (id, organization_id, code, name, type, tax_id, balance, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,'0.00',1,datetime('now'),datetime('now'))
	`, id, organizationID, "120.01", "Alice Ltd", "customer", "1234567890")
	require.NoError(t, err)
	return id
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRouterConstruction(t *testing.T) {
	var router http.Handler
	require.NotPanics(t, func() {
		router = NewRouter(Dependencies{MaxBodyBytes: 1 << 20})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	srv, st, _ := newTestServer(t)
	accountID := seedAccount(t, st, "org-1")

	resp := postJSON(t, srv.URL+"/v1/invoices", map[string]any{
		"organization_id": "org-1",
		"account_id":      accountID,
		"type":            "sales",
		"created_by":      "user-1",
		"lines": []map[string]any{
			{"description": "Consulting", "quantity": "2", "unit_price": "50", "tax_rate": 20},
			{"description": "Support", "quantity": "1", "unit_price": "100", "tax_rate": 10},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(security.CorrelationIDHeader))

	var created struct {
		CorrelationID string         `json:"correlation_id"`
		Invoice       *store.Invoice `json:"invoice"`
	}
	decodeBody(t, resp, &created)
	require.NotNil(t, created.Invoice)
	assert.Equal(t, "230.00", created.Invoice.Total)
	assert.NotEmpty(t, created.CorrelationID)

	resp = postJSON(t, fmt.Sprintf("%s/v1/invoices/%s/approve", srv.URL, created.Invoice.ID),
		map[string]any{"approved_by": "user-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var approved finance.ApprovalResult
	decodeBody(t, resp, &approved)
	assert.True(t, approved.Success)
	assert.NotEmpty(t, approved.LedgerID)

	// Approving again conflicts.
	resp = postJSON(t, fmt.Sprintf("%s/v1/invoices/%s/approve", srv.URL, created.Invoice.ID),
		map[string]any{"approved_by": "user-2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Validation error: invoice with no lines.
	resp := postJSON(t, srv.URL+"/v1/invoices", map[string]any{
		"organization_id": "org-1",
		"account_id":      "acc-1",
		"type":            "sales",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body security.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "validation_error", body.Error)
	assert.NotEmpty(t, body.CorrelationID)

	// Unknown invoice.
	resp = postJSON(t, srv.URL+"/v1/invoices/missing/approve", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Missing banking provider.
	resp = postJSON(t, srv.URL+"/v1/bank/sync", map[string]any{
		"organization_id": "org-1",
		"account_id":      "acc-1",
		"provider":        "openbanking",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// Unknown route.
	getResp, err := http.Get(srv.URL + "/v1/nothing")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestEInvoiceUserLookup(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/einvoice/users/1234567890?organization_id=org-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Registered bool `json:"registered"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.Registered)

	bad, err := http.Get(srv.URL + "/v1/einvoice/users/12?organization_id=org-1")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestFinancialSummaryEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/finance/summary?organization_id=org-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Summary *finance.Summary `json:"summary"`
	}
	decodeBody(t, resp, &body)
	require.NotNil(t, body.Summary)
	assert.Equal(t, "0.00", body.Summary.TotalRevenue)

	missing, err := http.Get(srv.URL + "/v1/finance/summary")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestRequestsAreAudited(t *testing.T) {
	srv, _, trail := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	entries := trail.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.RequestHandled, entries[len(entries)-1].Type)
	assert.True(t, audit.Verify(entries))
}
