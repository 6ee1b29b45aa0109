package finance

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/finance-core/internal/store"
)

const trendMonths = 6

// Aggregator computes the dashboard financial summary. It never returns an
// error: any datastore failure is logged and the affected figures stay at
// zero, so a dashboard read can always render.
type Aggregator struct {
	store  store.Store
	logger *slog.Logger
}

// NewAggregator creates a summary aggregator.
func NewAggregator(st store.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: st, logger: logger}
}

// Summary is the dashboard view of an organization's finances.
type Summary struct {
	TotalRevenue       string               `json:"total_revenue"`
	TotalExpenses      string               `json:"total_expenses"`
	NetIncome          string               `json:"net_income"`
	PendingPayments    string               `json:"pending_payments"`
	RecentTransactions []store.Transaction  `json:"recent_transactions"`
	MonthlyRevenue     []store.MonthlyTotal `json:"monthly_revenue"`
}

// GetFinancialSummary aggregates paid sales revenue, paid purchase expenses,
// outstanding sent invoices, the five most recent transactions, and the
// six-month revenue trend.
func (a *Aggregator) GetFinancialSummary(ctx context.Context, organizationID string) *Summary {
	summary := &Summary{
		TotalRevenue:       "0.00",
		TotalExpenses:      "0.00",
		NetIncome:          "0.00",
		PendingPayments:    "0.00",
		RecentTransactions: []store.Transaction{},
		MonthlyRevenue:     []store.MonthlyTotal{},
	}

	revenue := a.sum(ctx, organizationID, "sales", "paid", "total revenue")
	expenses := a.sum(ctx, organizationID, "purchase", "paid", "total expenses")
	pending := a.sum(ctx, organizationID, "sales", "sent", "pending payments")

	summary.TotalRevenue = revenue.StringFixed(2)
	summary.TotalExpenses = expenses.StringFixed(2)
	summary.NetIncome = revenue.Sub(expenses).StringFixed(2)
	summary.PendingPayments = pending.StringFixed(2)

	if recent, err := a.store.RecentTransactions(ctx, organizationID, 5); err != nil {
		a.logger.Warn("summary: recent transactions unavailable",
			"organization_id", organizationID, "error", err)
	} else if recent != nil {
		summary.RecentTransactions = recent
	}

	since := time.Now().UTC().AddDate(0, -trendMonths, 0)
	if trend, err := a.store.MonthlyRevenue(ctx, organizationID, since); err != nil {
		a.logger.Warn("summary: monthly revenue unavailable",
			"organization_id", organizationID, "error", err)
	} else if trend != nil {
		summary.MonthlyRevenue = trend
	}

	return summary
}

func (a *Aggregator) sum(ctx context.Context, organizationID, invoiceType, status, figure string) decimal.Decimal {
	s, err := a.store.SumInvoiceTotals(ctx, organizationID, invoiceType, status)
	if err != nil {
		a.logger.Warn("summary: figure unavailable",
			"organization_id", organizationID, "figure", figure, "error", err)
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		a.logger.Warn("summary: malformed figure",
			"organization_id", organizationID, "figure", figure, "value", s)
		return decimal.Zero
	}
	return d
}
