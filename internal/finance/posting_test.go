package finance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/example/finance-core/internal/store"
)

func TestPostLedgerRejectsInconsistentTotals(t *testing.T) {
	st := newTestStore(t)

	inv := &store.Invoice{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		AccountID:      uuid.NewString(),
		Type:           "sales",
		InvoiceNumber:  "INV-test",
		InvoiceDate:    time.Now().UTC(),
		Subtotal:       "100.00",
		TaxTotal:       "18.00",
		Total:          "120.00",
	}

	err := st.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := postLedger(ctx, tx, inv)
		return err
	})
	assert.ErrorIs(t, err, ErrPosting)

	ledgers, lerr := st.ListLedgersByReference(context.Background(), inv.ID)
	assert.NoError(t, lerr)
	assert.Empty(t, ledgers, "a rejected posting writes nothing")
}

func TestPostLedgerRejectsUnknownInvoiceType(t *testing.T) {
	st := newTestStore(t)

	inv := &store.Invoice{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		AccountID:      uuid.NewString(),
		Type:           "credit_note",
		InvoiceNumber:  "INV-test",
		InvoiceDate:    time.Now().UTC(),
		Subtotal:       "100.00",
		TaxTotal:       "18.00",
		Total:          "118.00",
	}

	err := st.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := postLedger(ctx, tx, inv)
		return err
	})
	assert.ErrorIs(t, err, ErrPosting)
}

func TestPostLedgerZeroTaxOmitsVATLeg(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	accountID := createCounterparty(t, st, "org-1", "Alice Ltd")

	inv := &store.Invoice{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		AccountID:      accountID,
		Type:           "sales",
		InvoiceNumber:  "INV-test",
		InvoiceDate:    time.Now().UTC(),
		Subtotal:       "100.00",
		TaxTotal:       "0.00",
		Total:          "100.00",
	}

	var ledgerID string
	err := st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ledgerID, err = postLedger(ctx, tx, inv)
		return err
	})
	assert.NoError(t, err)

	entries, err := st.ListLedgerEntries(ctx, ledgerID)
	assert.NoError(t, err)
	assert.Len(t, entries, 2, "no VAT leg for a zero tax total")
}
