package finance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/finance-core/internal/store"
)

func seedInvoice(t *testing.T, st *store.SQLiteStore, organizationID, invoiceType, status, total string, date time.Time) {
	t.Helper()
	now := time.Now().UTC()
	_, err := st.DB.Exec(`
		INSERT INTO invoices (id, organization_id, account_id, type, invoice_number, invoice_date,
			status, subtotal, tax_total, total, currency, created_by, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,'0.00',?,'TRY','seed',?,?)
	`, uuid.NewString(), organizationID, uuid.NewString(), invoiceType, "INV-"+uuid.NewString()[:8],
		date, status, total, total, now, now)
	require.NoError(t, err)
}

func TestGetFinancialSummary(t *testing.T) {
	st := newTestStore(t)
	agg := NewAggregator(st, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	seedInvoice(t, st, "org-1", "sales", "paid", "1000.00", now.AddDate(0, -1, 0))
	seedInvoice(t, st, "org-1", "sales", "paid", "500.00", now)
	seedInvoice(t, st, "org-1", "sales", "sent", "230.00", now)
	seedInvoice(t, st, "org-1", "purchase", "paid", "400.00", now)
	seedInvoice(t, st, "org-1", "sales", "draft", "9999.00", now)
	seedInvoice(t, st, "org-2", "sales", "paid", "7777.00", now)

	for i := 0; i < 7; i++ {
		_, err := st.InsertTransaction(ctx, &store.Transaction{
			ID:             uuid.NewString(),
			OrganizationID: "org-1",
			AccountID:      "acc-1",
			Date:           now.AddDate(0, 0, -i),
			Amount:         fmt.Sprintf("%d.00", i+1),
			Description:    fmt.Sprintf("tx %d", i),
			Category:       "sales_invoice",
			CreatedAt:      now,
		})
		require.NoError(t, err)
	}

	summary := agg.GetFinancialSummary(ctx, "org-1")
	require.NotNil(t, summary)

	assert.Equal(t, "1500.00", summary.TotalRevenue)
	assert.Equal(t, "400.00", summary.TotalExpenses)
	assert.Equal(t, "1100.00", summary.NetIncome)
	assert.Equal(t, "230.00", summary.PendingPayments)
	assert.Len(t, summary.RecentTransactions, 5, "recent transactions are capped at five")
	require.NotEmpty(t, summary.MonthlyRevenue)

	var trendTotal float64
	for _, m := range summary.MonthlyRevenue {
		var v float64
		_, err := fmt.Sscanf(m.Total, "%f", &v)
		require.NoError(t, err)
		trendTotal += v
	}
	assert.InDelta(t, 1500.0, trendTotal, 0.001, "trend covers the paid sales of the window")
}

func TestGetFinancialSummaryEmptyOrganization(t *testing.T) {
	st := newTestStore(t)
	agg := NewAggregator(st, testLogger())

	summary := agg.GetFinancialSummary(context.Background(), "org-without-data")
	require.NotNil(t, summary)
	assert.Equal(t, "0.00", summary.TotalRevenue)
	assert.Equal(t, "0.00", summary.TotalExpenses)
	assert.Equal(t, "0.00", summary.NetIncome)
	assert.Equal(t, "0.00", summary.PendingPayments)
	assert.Empty(t, summary.RecentTransactions)
	assert.Empty(t, summary.MonthlyRevenue)
}

// brokenStore fails every read the aggregator performs. The embedded Store
// stays nil: the aggregator must never reach any other method.
type brokenStore struct {
	store.Store
}

func (b *brokenStore) SumInvoiceTotals(ctx context.Context, organizationID, invoiceType, status string) (string, error) {
	return "", fmt.Errorf("connection refused")
}

func (b *brokenStore) RecentTransactions(ctx context.Context, organizationID string, limit int) ([]store.Transaction, error) {
	return nil, fmt.Errorf("connection refused")
}

func (b *brokenStore) MonthlyRevenue(ctx context.Context, organizationID string, since time.Time) ([]store.MonthlyTotal, error) {
	return nil, fmt.Errorf("connection refused")
}

func TestGetFinancialSummaryNeverFails(t *testing.T) {
	agg := NewAggregator(&brokenStore{}, testLogger())

	summary := agg.GetFinancialSummary(context.Background(), "org-1")
	require.NotNil(t, summary, "a failing datastore degrades to a zero summary")
	assert.Equal(t, "0.00", summary.TotalRevenue)
	assert.Equal(t, "0.00", summary.TotalExpenses)
	assert.Equal(t, "0.00", summary.NetIncome)
	assert.Equal(t, "0.00", summary.PendingPayments)
	assert.Empty(t, summary.RecentTransactions)
	assert.Empty(t, summary.MonthlyRevenue)
}
