// Package store is the datastore boundary of the financial ledger engine.
// Two backends implement it: postgres (production) and sqlite (tests, local
// development). All monetary amounts cross this boundary as 2-decimal
// fixed-point strings; arithmetic on them belongs to the finance package.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoRows is returned by lookups that match nothing, regardless of backend.
var ErrNoRows = errors.New("store: no rows")

// Invoice is the persisted invoice header.
type Invoice struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	AccountID      string     `json:"account_id"`
	Type           string     `json:"type"`
	InvoiceNumber  string     `json:"invoice_number"`
	InvoiceDate    time.Time  `json:"invoice_date"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Status         string     `json:"status"`
	Subtotal       string     `json:"subtotal"`
	TaxTotal       string     `json:"tax_total"`
	Total          string     `json:"total"`
	Currency       string     `json:"currency"`
	Notes          string     `json:"notes,omitempty"`
	GIBStatus      string     `json:"gib_status,omitempty"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// InvoiceLine is a single invoice line item.
type InvoiceLine struct {
	ID          string `json:"id"`
	InvoiceID   string `json:"invoice_id"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxRate     int    `json:"tax_rate"`
	TaxAmount   string `json:"tax_amount"`
	Total       string `json:"total"`
}

// Account is a chart-of-accounts row. Balance is a denormalized running
// balance maintained by atomic increments.
type Account struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	TaxID          string    `json:"tax_id,omitempty"`
	Balance        string    `json:"balance"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Ledger is a journal header referencing the business event it posts.
type Ledger struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	JournalNumber  string    `json:"journal_number"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	ReferenceID    string    `json:"reference_id"`
	ReferenceType  string    `json:"reference_type"`
	Status         string    `json:"status"`
}

// LedgerEntry is one leg of a posting. Exactly one of Debit/Credit is
// non-zero per row.
type LedgerEntry struct {
	ID          string `json:"id"`
	LedgerID    string `json:"ledger_id"`
	AccountID   string `json:"account_id"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
}

// Transaction is a simplified single-entry counterparty movement, kept in
// parallel with the full ledger. Amount is signed. ExternalID carries the
// bank-side identifier for imported rows and is empty otherwise.
type Transaction struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AccountID      string    `json:"account_id"`
	Date           time.Time `json:"date"`
	Amount         string    `json:"amount"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	ReferenceType  string    `json:"reference_type,omitempty"`
	ExternalID     string    `json:"external_id,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MonthlyTotal is one bucket of the revenue trend.
type MonthlyTotal struct {
	Month string `json:"month"`
	Total string `json:"total"`
}

// Tx is the set of statements available inside a unit of work. Everything
// executed through a Tx commits together or not at all.
type Tx interface {
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InsertInvoiceLines(ctx context.Context, lines []InvoiceLine) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	// MarkInvoiceSent flips draft to sent as a conditional update and
	// reports whether a row changed. A false return means the invoice was
	// not in draft, including when a concurrent caller won the transition.
	MarkInvoiceSent(ctx context.Context, id string) (bool, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	// GetOrCreateAccount provisions an account by (organizationID, code),
	// tolerating concurrent first use: the insert is conflict-safe and the
	// row is fetched back afterwards.
	GetOrCreateAccount(ctx context.Context, organizationID, code, name, accountType string) (*Account, error)
	// AddToAccountBalance applies a signed decimal delta as an atomic
	// increment, never read-modify-write.
	AddToAccountBalance(ctx context.Context, accountID, delta string) error
	// InsertTransaction reports false when the row was dropped by
	// external-id deduplication.
	InsertTransaction(ctx context.Context, t *Transaction) (bool, error)
	InsertLedger(ctx context.Context, l *Ledger) (string, error)
	InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error
}

// Store is the full datastore surface: a transactional unit-of-work
// primitive plus the standalone reads and writes that run outside it.
type Store interface {
	// WithinTx runs fn inside one transaction and rolls everything back if
	// fn returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoiceLines(ctx context.Context, invoiceID string) ([]InvoiceLine, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListLedgersByReference(ctx context.Context, referenceID string) ([]Ledger, error)
	ListLedgerEntries(ctx context.Context, ledgerID string) ([]LedgerEntry, error)

	// UpdateInvoiceDispatch records the authority-assigned invoice number
	// and submission status. It runs outside any local transaction and is
	// safe to retry for the same invoice.
	UpdateInvoiceDispatch(ctx context.Context, id, invoiceNumber, gibStatus string) error
	InsertTransaction(ctx context.Context, t *Transaction) (bool, error)

	SumInvoiceTotals(ctx context.Context, organizationID, invoiceType, status string) (string, error)
	RecentTransactions(ctx context.Context, organizationID string, limit int) ([]Transaction, error)
	MonthlyRevenue(ctx context.Context, organizationID string, since time.Time) ([]MonthlyTotal, error)
}
