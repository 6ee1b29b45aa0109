package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 5 * time.Second

// PostgresStore is the production Store backed by a pgx connection pool.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// Migrate applies the embedded schema. Idempotent.
func (ps *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := ps.Pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// WithinTx runs fn inside a SERIALIZABLE transaction, retrying the whole
// unit of work on serialization failures the way concurrent approvals
// produce them.
func (ps *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	const maxRetries = 3

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := ps.runTx(ctx, fn)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "40001" {
				if attempt == maxRetries-1 {
					return fmt.Errorf("transaction failed after %d retries due to serialization failure: %w", maxRetries, err)
				}
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return err
		}
		break
	}

	return nil
}

func (ps *PostgresStore) runTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	conn, err := ps.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanInvoice(ps.Pool.QueryRow(ctx, selectInvoiceSQL+` WHERE id = $1`, id))
}

func (ps *PostgresStore) ListInvoiceLines(ctx context.Context, invoiceID string) ([]InvoiceLine, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := ps.Pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity::text, unit_price::text, tax_rate, tax_amount::text, total::text
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY id
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

func (ps *PostgresStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanAccount(ps.Pool.QueryRow(ctx, selectAccountSQL+` WHERE id = $1`, id))
}

func (ps *PostgresStore) ListLedgersByReference(ctx context.Context, referenceID string) ([]Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := ps.Pool.Query(ctx, `
		SELECT id, organization_id, journal_number, date, description, type, reference_id, reference_type, status
		FROM ledgers
		WHERE reference_id = $1
		ORDER BY date
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

func (ps *PostgresStore) ListLedgerEntries(ctx context.Context, ledgerID string) ([]LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := ps.Pool.Query(ctx, `
		SELECT id, ledger_id, account_id, debit::text, credit::text, description
		FROM ledger_entries
		WHERE ledger_id = $1
		ORDER BY id
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

func (ps *PostgresStore) UpdateInvoiceDispatch(ctx context.Context, id, invoiceNumber, gibStatus string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := ps.Pool.Exec(ctx, `
		UPDATE invoices
		SET invoice_number = $2, gib_status = $3, updated_at = now()
		WHERE id = $1
	`, id, invoiceNumber, gibStatus)
	if err != nil {
		return fmt.Errorf("failed to update invoice dispatch state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s: %w", id, ErrNoRows)
	}
	return nil
}

func (ps *PostgresStore) InsertTransaction(ctx context.Context, t *Transaction) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return insertTransactionPG(ctx, ps.Pool, t)
}

func (ps *PostgresStore) SumInvoiceTotals(ctx context.Context, organizationID, invoiceType, status string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var sum string
	err := ps.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0)::numeric(15,2)::text
		FROM invoices
		WHERE organization_id = $1 AND type = $2 AND status = $3
	`, organizationID, invoiceType, status).Scan(&sum)
	if err != nil {
		return "", fmt.Errorf("failed to sum invoice totals: %w", err)
	}
	return sum, nil
}

func (ps *PostgresStore) RecentTransactions(ctx context.Context, organizationID string, limit int) ([]Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := ps.Pool.Query(ctx, `
		SELECT id, organization_id, account_id, date, amount::text, description, category,
		       COALESCE(reference_id, ''), COALESCE(reference_type, ''), COALESCE(external_id, ''),
		       COALESCE(created_by, ''), created_at
		FROM transactions
		WHERE organization_id = $1
		ORDER BY date DESC
		LIMIT $2
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

func (ps *PostgresStore) MonthlyRevenue(ctx context.Context, organizationID string, since time.Time) ([]MonthlyTotal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := ps.Pool.Query(ctx, `
		SELECT to_char(date_trunc('month', invoice_date), 'YYYY-MM') AS month,
		       SUM(total)::numeric(15,2)::text
		FROM invoices
		WHERE organization_id = $1 AND type = 'sales' AND status = 'paid' AND invoice_date >= $2
		GROUP BY 1
		ORDER BY 1
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

// Close closes the underlying pool.
func (ps *PostgresStore) Close() {
	ps.Pool.Close()
}

// postgresTx adapts a pgx transaction to the Tx statement set.
type postgresTx struct {
	tx pgx.Tx
}

func (pt *postgresTx) InsertInvoice(ctx context.Context, inv *Invoice) error {
	_, err := pt.tx.Exec(ctx, `
		INSERT INTO invoices (
			id, organization_id, account_id, type, invoice_number, invoice_date, due_date,
			status, subtotal, tax_total, total, currency, notes, gib_status, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),$15,$16,$17)
	`, inv.ID, inv.OrganizationID, inv.AccountID, inv.Type, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
		inv.Status, inv.Subtotal, inv.TaxTotal, inv.Total, inv.Currency, inv.Notes, inv.GIBStatus, inv.CreatedBy,
		inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (pt *postgresTx) InsertInvoiceLines(ctx context.Context, lines []InvoiceLine) error {
	for _, l := range lines {
		_, err := pt.tx.Exec(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, description, quantity, unit_price, tax_rate, tax_amount, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, l.ID, l.InvoiceID, l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.TaxAmount, l.Total)
		if err != nil {
			return fmt.Errorf("failed to insert invoice line: %w", err)
		}
	}
	return nil
}

func (pt *postgresTx) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	return scanInvoice(pt.tx.QueryRow(ctx, selectInvoiceSQL+` WHERE id = $1 FOR UPDATE`, id))
}

func (pt *postgresTx) MarkInvoiceSent(ctx context.Context, id string) (bool, error) {
	tag, err := pt.tx.Exec(ctx, `
		UPDATE invoices SET status = 'sent', updated_at = now()
		WHERE id = $1 AND status = 'draft'
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark invoice sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (pt *postgresTx) GetAccount(ctx context.Context, id string) (*Account, error) {
	return scanAccount(pt.tx.QueryRow(ctx, selectAccountSQL+` WHERE id = $1`, id))
}

func (pt *postgresTx) GetOrCreateAccount(ctx context.Context, organizationID, code, name, accountType string) (*Account, error) {
	_, err := pt.tx.Exec(ctx, `
		INSERT INTO accounts (id, organization_id, code, name, type, balance, is_active, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 0.00, true, now(), now())
		ON CONFLICT (organization_id, code) DO NOTHING
	`, organizationID, code, name, accountType)
	if err != nil {
		return nil, fmt.Errorf("failed to provision account %s: %w", code, err)
	}

	return scanAccount(pt.tx.QueryRow(ctx, selectAccountSQL+` WHERE organization_id = $1 AND code = $2`, organizationID, code))
}

func (pt *postgresTx) AddToAccountBalance(ctx context.Context, accountID, delta string) error {
	tag, err := pt.tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2::numeric(15,2), updated_at = now()
		WHERE id = $1
	`, accountID, delta)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNoRows)
	}
	return nil
}

func (pt *postgresTx) InsertTransaction(ctx context.Context, t *Transaction) (bool, error) {
	return insertTransactionPG(ctx, pt.tx, t)
}

func (pt *postgresTx) InsertLedger(ctx context.Context, l *Ledger) (string, error) {
	var id string
	err := pt.tx.QueryRow(ctx, `
		INSERT INTO ledgers (id, organization_id, journal_number, date, description, type, reference_id, reference_type, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, l.ID, l.OrganizationID, l.JournalNumber, l.Date, l.Description, l.Type, l.ReferenceID, l.ReferenceType, l.Status).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoRows
		}
		return "", fmt.Errorf("failed to insert ledger: %w", err)
	}
	return id, nil
}

func (pt *postgresTx) InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error {
	for _, e := range entries {
		_, err := pt.tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, ledger_id, account_id, debit, credit, description)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, e.ID, e.LedgerID, e.AccountID, e.Debit, e.Credit, e.Description)
		if err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}
	return nil
}

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertTransactionPG(ctx context.Context, ex pgExecutor, t *Transaction) (bool, error) {
	tag, err := ex.Exec(ctx, `
		INSERT INTO transactions (
			id, organization_id, account_id, date, amount, description, category,
			reference_id, reference_type, external_id, created_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),NULLIF($10,''),NULLIF($11,''),$12)
		ON CONFLICT (organization_id, external_id) WHERE external_id IS NOT NULL DO NOTHING
	`, t.ID, t.OrganizationID, t.AccountID, t.Date, t.Amount, t.Description, t.Category,
		t.ReferenceID, t.ReferenceType, t.ExternalID, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const selectInvoiceSQL = `
	SELECT id, organization_id, account_id, type, invoice_number, invoice_date, due_date,
	       status, subtotal::text, tax_total::text, total::text, currency,
	       COALESCE(notes, ''), COALESCE(gib_status, ''), COALESCE(created_by, ''), created_at, updated_at
	FROM invoices`

const selectAccountSQL = `
	SELECT id, organization_id, code, name, type, COALESCE(tax_id, ''), balance::text, is_active, created_at, updated_at
	FROM accounts`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.AccountID, &inv.Type, &inv.InvoiceNumber,
		&inv.InvoiceDate, &inv.DueDate, &inv.Status, &inv.Subtotal, &inv.TaxTotal, &inv.Total,
		&inv.Currency, &inv.Notes, &inv.GIBStatus, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	return &inv, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Code, &a.Name, &a.Type, &a.TaxID, &a.Balance,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}
