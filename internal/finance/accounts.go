package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/finance-core/internal/store"
)

// SystemAccount is one entry of the closed set of coded accounts every
// organization's chart of accounts carries. They are provisioned lazily on
// first posting.
type SystemAccount struct {
	Code string
	Name string
	Type string
}

var (
	SalesRevenueAccount  = SystemAccount{Code: "600", Name: "Sales Revenue", Type: "revenue"}
	VATPayableAccount    = SystemAccount{Code: "391", Name: "VAT Payable", Type: "liability"}
	VATReceivableAccount = SystemAccount{Code: "191", Name: "VAT Receivable", Type: "asset"}
	ExpensesAccount      = SystemAccount{Code: "770", Name: "Expenses", Type: "expense"}
)

// resolveSystemAccount returns the organization's account for a system code,
// creating it with a zero balance on first use. The insert is conflict-safe
// on (organization, code), so concurrent first uses converge on one row.
// Must run inside the same unit of work as the posting that needs it.
func resolveSystemAccount(ctx context.Context, tx store.Tx, organizationID string, sa SystemAccount) (*store.Account, error) {
	account, err := tx.GetOrCreateAccount(ctx, organizationID, sa.Code, sa.Name, sa.Type)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, fmt.Errorf("%w: system account %s for organization %s", ErrNotFound, sa.Code, organizationID)
		}
		return nil, err
	}
	return account, nil
}
