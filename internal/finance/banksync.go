package finance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/finance-core/internal/integration"
	"github.com/example/finance-core/internal/store"
	"github.com/example/finance-core/pkg/audit"
)

const defaultLookbackDays = 30

// Importer pulls bank statement rows through a banking provider and records
// them as transactions. Rows are deduplicated on the bank-side external id,
// so overlapping sync windows are safe to repeat.
type Importer struct {
	store     store.Store
	directory *integration.Directory
	auditor   *audit.Trail
	logger    *slog.Logger
}

// NewImporter creates a bank sync importer. The auditor may be nil.
func NewImporter(st store.Store, directory *integration.Directory, auditor *audit.Trail, logger *slog.Logger) *Importer {
	return &Importer{store: st, directory: directory, auditor: auditor, logger: logger}
}

// SyncInput selects the account and provider to sync. LookbackDays defaults
// to 30 when zero.
type SyncInput struct {
	OrganizationID string `json:"organization_id"`
	AccountID      string `json:"account_id"`
	AccountNumber  string `json:"account_number"`
	Provider       string `json:"provider"`
	LookbackDays   int    `json:"lookback_days,omitempty"`
}

// SyncResult reports how many statement rows were newly recorded.
type SyncResult struct {
	SyncedCount  int                 `json:"synced_count"`
	Transactions []store.Transaction `json:"transactions"`
}

// Sync fetches the statement window and inserts each row as a bank_sync
// transaction. Unlike the e-invoice path there is no sandbox fallback: a
// missing or failing banking provider is ErrIntegrationUnavailable.
func (i *Importer) Sync(ctx context.Context, in SyncInput) (*SyncResult, error) {
	if in.OrganizationID == "" || in.AccountID == "" {
		return nil, fmt.Errorf("%w: organization id and account id are required", ErrValidation)
	}
	lookback := in.LookbackDays
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}

	provider, err := i.directory.BankingProviderFor(in.OrganizationID, in.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrationUnavailable, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	since := time.Now().UTC().AddDate(0, 0, -lookback)
	rows, err := provider.GetTransactions(callCtx, in.AccountNumber, since)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch bank transactions: %v", ErrIntegrationUnavailable, err)
	}

	result := &SyncResult{Transactions: make([]store.Transaction, 0, len(rows))}
	for _, row := range rows {
		t := store.Transaction{
			ID:             uuid.NewString(),
			OrganizationID: in.OrganizationID,
			AccountID:      in.AccountID,
			Date:           row.Date,
			Amount:         row.Amount,
			Description:    row.Description,
			Category:       "bank_sync",
			ReferenceType:  "bank_transaction",
			ExternalID:     row.ExternalID,
			CreatedAt:      time.Now().UTC(),
		}
		inserted, err := i.store.InsertTransaction(ctx, &t)
		if err != nil {
			return nil, fmt.Errorf("record bank transaction %s: %w", row.ExternalID, err)
		}
		if inserted {
			result.SyncedCount++
			result.Transactions = append(result.Transactions, t)
		}
	}

	i.auditor.Record(ctx, audit.BankSyncCompleted, in.AccountID, map[string]string{
		"organization_id": in.OrganizationID,
		"fetched":         strconv.Itoa(len(rows)),
		"synced":          strconv.Itoa(result.SyncedCount),
	})
	i.logger.Info("bank sync completed",
		"organization_id", in.OrganizationID,
		"account_id", in.AccountID,
		"fetched", len(rows),
		"synced", result.SyncedCount)

	return result, nil
}
