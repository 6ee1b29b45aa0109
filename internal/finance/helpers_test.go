package finance

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/finance-core/internal/integration"
	"github.com/example/finance-core/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.NewSQLiteStore(db)
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createCounterparty seeds a customer or supplier account with a valid tax id.
func createCounterparty(t *testing.T, st *store.SQLiteStore, organizationID, name string) string {
	t.Helper()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := st.DB.Exec(`
		INSERT INTO accounts (id, organization_id, code, name, type, tax_id, balance, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,'0.00',1,?,?)
	`, id, organizationID, "120-"+id[:8], name, "customer", "1234567890", now, now)
	require.NoError(t, err)
	return id
}

func newTestService(t *testing.T, st *store.SQLiteStore, directory *integration.Directory) (*Service, *Dispatcher) {
	t.Helper()

	if directory == nil {
		directory = integration.NewDirectory()
	}
	dispatcher := NewDispatcher(st, directory, "sandbox", nil, testLogger())
	return NewService(st, dispatcher, nil, testLogger()), dispatcher
}

func salesInput(organizationID, accountID string) CreateInvoiceInput {
	return CreateInvoiceInput{
		OrganizationID: organizationID,
		AccountID:      accountID,
		Type:           "sales",
		CreatedBy:      "user-1",
		Lines: []LineInput{
			{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("50"), TaxRate: 20},
			{Description: "Support", Quantity: dec("1"), UnitPrice: dec("100"), TaxRate: 10},
		},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
