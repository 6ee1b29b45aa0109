package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func newRowID() string { return uuid.NewString() }

// SQLiteStore is a Store backed by database/sql and the sqlite3 driver. The
// test suite and local development run on it; production runs on postgres.
type SQLiteStore struct {
	DB *sql.DB
}

// NewSQLiteStore creates a SQLiteStore on an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

// Migrate applies the embedded sqlite schema. Idempotent.
func (ss *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := ss.DB.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (ss *SQLiteStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := ss.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (ss *SQLiteStore) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	return scanInvoiceLite(ss.DB.QueryRowContext(ctx, sqliteSelectInvoice+` WHERE id = ?`, id))
}

func (ss *SQLiteStore) ListInvoiceLines(ctx context.Context, invoiceID string) ([]InvoiceLine, error) {
	rows, err := ss.DB.QueryContext(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, tax_rate, tax_amount, total
		FROM invoice_lines WHERE invoice_id = ? ORDER BY rowid
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.TaxAmount, &l.Total); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (ss *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	return scanAccountLite(ss.DB.QueryRowContext(ctx, sqliteSelectAccount+` WHERE id = ?`, id))
}

func (ss *SQLiteStore) ListLedgersByReference(ctx context.Context, referenceID string) ([]Ledger, error) {
	rows, err := ss.DB.QueryContext(ctx, `
		SELECT id, organization_id, journal_number, date, description, type, reference_id, reference_type, status
		FROM ledgers WHERE reference_id = ? ORDER BY date
	`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []Ledger
	for rows.Next() {
		var l Ledger
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.JournalNumber, &l.Date, &l.Description, &l.Type, &l.ReferenceID, &l.ReferenceType, &l.Status); err != nil {
			return nil, fmt.Errorf("failed to scan ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func (ss *SQLiteStore) ListLedgerEntries(ctx context.Context, ledgerID string) ([]LedgerEntry, error) {
	rows, err := ss.DB.QueryContext(ctx, `
		SELECT id, ledger_id, account_id, debit, credit, description
		FROM ledger_entries WHERE ledger_id = ? ORDER BY rowid
	`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.LedgerID, &e.AccountID, &e.Debit, &e.Credit, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (ss *SQLiteStore) UpdateInvoiceDispatch(ctx context.Context, id, invoiceNumber, gibStatus string) error {
	res, err := ss.DB.ExecContext(ctx, `
		UPDATE invoices SET invoice_number = ?, gib_status = ?, updated_at = ? WHERE id = ?
	`, invoiceNumber, gibStatus, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice dispatch state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %s: %w", id, ErrNoRows)
	}
	return nil
}

func (ss *SQLiteStore) InsertTransaction(ctx context.Context, t *Transaction) (bool, error) {
	return insertTransactionLite(ctx, ss.DB, t)
}

func (ss *SQLiteStore) SumInvoiceTotals(ctx context.Context, organizationID, invoiceType, status string) (string, error) {
	var sum string
	err := ss.DB.QueryRowContext(ctx, `
		SELECT printf('%.2f', COALESCE(SUM(CAST(total AS REAL)), 0))
		FROM invoices WHERE organization_id = ? AND type = ? AND status = ?
	`, organizationID, invoiceType, status).Scan(&sum)
	if err != nil {
		return "", fmt.Errorf("failed to sum invoice totals: %w", err)
	}
	return sum, nil
}

func (ss *SQLiteStore) RecentTransactions(ctx context.Context, organizationID string, limit int) ([]Transaction, error) {
	rows, err := ss.DB.QueryContext(ctx, `
		SELECT id, organization_id, account_id, date, amount, description, category,
		       COALESCE(reference_id, ''), COALESCE(reference_type, ''), COALESCE(external_id, ''),
		       COALESCE(created_by, ''), created_at
		FROM transactions WHERE organization_id = ?
		ORDER BY date DESC LIMIT ?
	`, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.AccountID, &t.Date, &t.Amount, &t.Description, &t.Category,
			&t.ReferenceID, &t.ReferenceType, &t.ExternalID, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (ss *SQLiteStore) MonthlyRevenue(ctx context.Context, organizationID string, since time.Time) ([]MonthlyTotal, error) {
	rows, err := ss.DB.QueryContext(ctx, `
		SELECT substr(invoice_date, 1, 7) AS month,
		       printf('%.2f', SUM(CAST(total AS REAL)))
		FROM invoices
		WHERE organization_id = ? AND type = 'sales' AND status = 'paid' AND invoice_date >= ?
		GROUP BY month ORDER BY month
	`, organizationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly revenue: %w", err)
	}
	defer rows.Close()

	var totals []MonthlyTotal
	for rows.Next() {
		var mt MonthlyTotal
		if err := rows.Scan(&mt.Month, &mt.Total); err != nil {
			return nil, fmt.Errorf("failed to scan monthly revenue: %w", err)
		}
		totals = append(totals, mt)
	}
	return totals, rows.Err()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (st *sqliteTx) InsertInvoice(ctx context.Context, inv *Invoice) error {
	var due any
	if inv.DueDate != nil {
		due = *inv.DueDate
	}
	_, err := st.tx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, organization_id, account_id, type, invoice_number, invoice_date, due_date,
			status, subtotal, tax_total, total, currency, notes, gib_status, created_by, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,NULLIF(?,''),?,?,?)
	`, inv.ID, inv.OrganizationID, inv.AccountID, inv.Type, inv.InvoiceNumber, inv.InvoiceDate, due,
		inv.Status, inv.Subtotal, inv.TaxTotal, inv.Total, inv.Currency, inv.Notes, inv.GIBStatus, inv.CreatedBy,
		inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (st *sqliteTx) InsertInvoiceLines(ctx context.Context, lines []InvoiceLine) error {
	for _, l := range lines {
		_, err := st.tx.ExecContext(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, description, quantity, unit_price, tax_rate, tax_amount, total)
			VALUES (?,?,?,?,?,?,?,?)
		`, l.ID, l.InvoiceID, l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.TaxAmount, l.Total)
		if err != nil {
			return fmt.Errorf("failed to insert invoice line: %w", err)
		}
	}
	return nil
}

func (st *sqliteTx) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	return scanInvoiceLite(st.tx.QueryRowContext(ctx, sqliteSelectInvoice+` WHERE id = ?`, id))
}

func (st *sqliteTx) MarkInvoiceSent(ctx context.Context, id string) (bool, error) {
	res, err := st.tx.ExecContext(ctx, `
		UPDATE invoices SET status = 'sent', updated_at = ? WHERE id = ? AND status = 'draft'
	`, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark invoice sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (st *sqliteTx) GetAccount(ctx context.Context, id string) (*Account, error) {
	return scanAccountLite(st.tx.QueryRowContext(ctx, sqliteSelectAccount+` WHERE id = ?`, id))
}

func (st *sqliteTx) GetOrCreateAccount(ctx context.Context, organizationID, code, name, accountType string) (*Account, error) {
	_, err := st.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, organization_id, code, name, type, balance, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,'0.00',1,?,?)
		ON CONFLICT (organization_id, code) DO NOTHING
	`, newRowID(), organizationID, code, name, accountType, time.Now().UTC(), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to provision account %s: %w", code, err)
	}

	return scanAccountLite(st.tx.QueryRowContext(ctx, sqliteSelectAccount+` WHERE organization_id = ? AND code = ?`, organizationID, code))
}

func (st *sqliteTx) AddToAccountBalance(ctx context.Context, accountID, delta string) error {
	res, err := st.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = printf('%.2f', CAST(balance AS REAL) + CAST(? AS REAL)), updated_at = ?
		WHERE id = ?
	`, delta, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNoRows)
	}
	return nil
}

func (st *sqliteTx) InsertTransaction(ctx context.Context, t *Transaction) (bool, error) {
	return insertTransactionLite(ctx, st.tx, t)
}

func (st *sqliteTx) InsertLedger(ctx context.Context, l *Ledger) (string, error) {
	_, err := st.tx.ExecContext(ctx, `
		INSERT INTO ledgers (id, organization_id, journal_number, date, description, type, reference_id, reference_type, status)
		VALUES (?,?,?,?,?,?,?,?,?)
	`, l.ID, l.OrganizationID, l.JournalNumber, l.Date, l.Description, l.Type, l.ReferenceID, l.ReferenceType, l.Status)
	if err != nil {
		return "", fmt.Errorf("failed to insert ledger: %w", err)
	}

	var id string
	if err := st.tx.QueryRowContext(ctx, `SELECT id FROM ledgers WHERE id = ?`, l.ID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoRows
		}
		return "", fmt.Errorf("failed to read back ledger: %w", err)
	}
	return id, nil
}

func (st *sqliteTx) InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error {
	for _, e := range entries {
		_, err := st.tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, ledger_id, account_id, debit, credit, description)
			VALUES (?,?,?,?,?,?)
		`, e.ID, e.LedgerID, e.AccountID, e.Debit, e.Credit, e.Description)
		if err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}
	return nil
}

type sqliteExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransactionLite(ctx context.Context, ex sqliteExecutor, t *Transaction) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, organization_id, account_id, date, amount, description, category,
			reference_id, reference_type, external_id, created_by, created_at
		) VALUES (?,?,?,?,?,?,?,NULLIF(?,''),NULLIF(?,''),NULLIF(?,''),NULLIF(?,''),?)
	`, t.ID, t.OrganizationID, t.AccountID, t.Date, t.Amount, t.Description, t.Category,
		t.ReferenceID, t.ReferenceType, t.ExternalID, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const sqliteSelectInvoice = `
	SELECT id, organization_id, account_id, type, invoice_number, invoice_date, due_date,
	       status, subtotal, tax_total, total, currency,
	       COALESCE(notes, ''), COALESCE(gib_status, ''), COALESCE(created_by, ''), created_at, updated_at
	FROM invoices`

const sqliteSelectAccount = `
	SELECT id, organization_id, code, name, type, COALESCE(tax_id, ''), balance, is_active, created_at, updated_at
	FROM accounts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoiceLite(row rowScanner) (*Invoice, error) {
	var inv Invoice
	var due sql.NullTime
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.AccountID, &inv.Type, &inv.InvoiceNumber,
		&inv.InvoiceDate, &due, &inv.Status, &inv.Subtotal, &inv.TaxTotal, &inv.Total,
		&inv.Currency, &inv.Notes, &inv.GIBStatus, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	if due.Valid {
		inv.DueDate = &due.Time
	}
	return &inv, nil
}

func scanAccountLite(row rowScanner) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Code, &a.Name, &a.Type, &a.TaxID, &a.Balance,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}
