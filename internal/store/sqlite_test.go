package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := NewSQLiteStore(db)
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func insertTestInvoice(t *testing.T, st *SQLiteStore, inv *Invoice) {
	t.Helper()
	err := st.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertInvoice(ctx, inv)
	})
	require.NoError(t, err)
}

func draftInvoice(organizationID string) *Invoice {
	now := time.Now().UTC()
	return &Invoice{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		AccountID:      uuid.NewString(),
		Type:           "sales",
		InvoiceNumber:  "INV-" + uuid.NewString()[:8],
		InvoiceDate:    now,
		Status:         "draft",
		Subtotal:       "100.00",
		TaxTotal:       "18.00",
		Total:          "118.00",
		Currency:       "TRY",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestGetOrCreateAccountConcurrent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
				a, err := tx.GetOrCreateAccount(ctx, "org-1", "600", "Sales Revenue", "revenue")
				if err != nil {
					return err
				}
				ids[i] = a.ID
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i], "all callers must converge on one account row")
	}

	var count int
	require.NoError(t, st.DB.QueryRow(
		`SELECT COUNT(*) FROM accounts WHERE organization_id = 'org-1' AND code = '600'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetOrCreateAccountPerOrganization(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var first, second *Account
	err := st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		first, err = tx.GetOrCreateAccount(ctx, "org-1", "600", "Sales Revenue", "revenue")
		if err != nil {
			return err
		}
		second, err = tx.GetOrCreateAccount(ctx, "org-2", "600", "Sales Revenue", "revenue")
		return err
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "same code in different organizations is a different account")
	assert.Equal(t, "0.00", first.Balance)
}

func TestMarkInvoiceSent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inv := draftInvoice("org-1")
	insertTestInvoice(t, st, inv)

	err := st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		changed, err := tx.MarkInvoiceSent(ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, changed, "first transition wins")
		return nil
	})
	require.NoError(t, err)

	err = st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		changed, err := tx.MarkInvoiceSent(ctx, inv.ID)
		require.NoError(t, err)
		assert.False(t, changed, "invoice already left draft")
		return nil
	})
	require.NoError(t, err)

	got, err := st.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "sent", got.Status)
}

func TestAddToAccountBalance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var accountID string
	err := st.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.GetOrCreateAccount(ctx, "org-1", "120", "Alice Ltd", "customer")
		if err != nil {
			return err
		}
		accountID = a.ID
		if err := tx.AddToAccountBalance(ctx, accountID, "230.00"); err != nil {
			return err
		}
		return tx.AddToAccountBalance(ctx, accountID, "-30.50")
	})
	require.NoError(t, err)

	a, err := st.GetAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "199.50", a.Balance)
}

func TestAddToAccountBalanceUnknownAccount(t *testing.T) {
	st := newTestStore(t)

	err := st.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.AddToAccountBalance(ctx, "missing", "1.00")
	})
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestInsertTransactionDeduplicatesOnExternalID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tr := &Transaction{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		AccountID:      uuid.NewString(),
		Date:           time.Now().UTC(),
		Amount:         "-42.00",
		Description:    "POS payment",
		Category:       "bank_sync",
		ReferenceType:  "bank_transaction",
		ExternalID:     "bank-tx-1",
		CreatedAt:      time.Now().UTC(),
	}

	inserted, err := st.InsertTransaction(ctx, tr)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *tr
	dup.ID = uuid.NewString()
	inserted, err = st.InsertTransaction(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted, "same external id must not insert twice")

	// Rows without an external id never collide with each other.
	for i := 0; i < 2; i++ {
		inserted, err = st.InsertTransaction(ctx, &Transaction{
			ID:             uuid.NewString(),
			OrganizationID: "org-1",
			AccountID:      tr.AccountID,
			Date:           time.Now().UTC(),
			Amount:         "10.00",
			Description:    "manual",
			Category:       "sales_invoice",
			CreatedAt:      time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.True(t, inserted)
	}
}

func TestUpdateInvoiceDispatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inv := draftInvoice("org-1")
	insertTestInvoice(t, st, inv)

	require.NoError(t, st.UpdateInvoiceDispatch(ctx, inv.ID, "GIB2026-0001", "sent"))

	got, err := st.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "GIB2026-0001", got.InvoiceNumber)
	assert.Equal(t, "sent", got.GIBStatus)

	assert.ErrorIs(t, st.UpdateInvoiceDispatch(ctx, "missing", "X", "sent"), ErrNoRows)
}

func TestGetInvoiceNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetInvoice(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoRows)
}
