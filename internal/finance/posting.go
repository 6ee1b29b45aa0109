package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/finance-core/internal/store"
)

// postLedger writes the double-entry journal for an approved invoice inside
// the caller's unit of work and returns the new ledger id.
//
// Sales invoices debit the counterparty for the gross total and credit
// revenue (600) and VAT payable (391). Purchase invoices debit expenses
// (770) and VAT receivable (191) and credit the counterparty. A zero tax
// total produces no VAT leg.
func postLedger(ctx context.Context, tx store.Tx, inv *store.Invoice) (string, error) {
	subtotal, err := parseAmount(inv.Subtotal)
	if err != nil {
		return "", fmt.Errorf("%w: invoice %s subtotal: %v", ErrPosting, inv.ID, err)
	}
	taxTotal, err := parseAmount(inv.TaxTotal)
	if err != nil {
		return "", fmt.Errorf("%w: invoice %s tax total: %v", ErrPosting, inv.ID, err)
	}
	total, err := parseAmount(inv.Total)
	if err != nil {
		return "", fmt.Errorf("%w: invoice %s total: %v", ErrPosting, inv.ID, err)
	}
	if !subtotal.Add(taxTotal).Equal(total) {
		return "", fmt.Errorf("%w: invoice %s totals do not add up: %s + %s != %s",
			ErrPosting, inv.ID, inv.Subtotal, inv.TaxTotal, inv.Total)
	}

	ledger := &store.Ledger{
		ID:             uuid.NewString(),
		OrganizationID: inv.OrganizationID,
		JournalNumber:  newJournalNumber(),
		Date:           inv.InvoiceDate,
		Description:    fmt.Sprintf("Invoice %s posting", inv.InvoiceNumber),
		Type:           inv.Type,
		ReferenceID:    inv.ID,
		ReferenceType:  "invoice",
		Status:         "posted",
	}

	var entries []store.LedgerEntry
	switch inv.Type {
	case "sales":
		revenue, err := resolveSystemAccount(ctx, tx, inv.OrganizationID, SalesRevenueAccount)
		if err != nil {
			return "", err
		}
		entries = append(entries, debitEntry(ledger.ID, inv.AccountID, total, ledger.Description))
		entries = append(entries, creditEntry(ledger.ID, revenue.ID, subtotal, ledger.Description))
		if taxTotal.IsPositive() {
			vat, err := resolveSystemAccount(ctx, tx, inv.OrganizationID, VATPayableAccount)
			if err != nil {
				return "", err
			}
			entries = append(entries, creditEntry(ledger.ID, vat.ID, taxTotal, ledger.Description))
		}
	case "purchase":
		expenses, err := resolveSystemAccount(ctx, tx, inv.OrganizationID, ExpensesAccount)
		if err != nil {
			return "", err
		}
		entries = append(entries, debitEntry(ledger.ID, expenses.ID, subtotal, ledger.Description))
		if taxTotal.IsPositive() {
			vat, err := resolveSystemAccount(ctx, tx, inv.OrganizationID, VATReceivableAccount)
			if err != nil {
				return "", err
			}
			entries = append(entries, debitEntry(ledger.ID, vat.ID, taxTotal, ledger.Description))
		}
		entries = append(entries, creditEntry(ledger.ID, inv.AccountID, total, ledger.Description))
	default:
		return "", fmt.Errorf("%w: unknown invoice type %q", ErrPosting, inv.Type)
	}

	if err := verifyBalanced(entries, total); err != nil {
		return "", err
	}

	id, err := tx.InsertLedger(ctx, ledger)
	if err != nil {
		return "", fmt.Errorf("%w: insert ledger for invoice %s: %v", ErrPosting, inv.ID, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: ledger insert for invoice %s returned no id", ErrPosting, inv.ID)
	}
	if err := tx.InsertLedgerEntries(ctx, entries); err != nil {
		return "", fmt.Errorf("%w: insert ledger entries for invoice %s: %v", ErrPosting, inv.ID, err)
	}
	return id, nil
}

// projectBalance applies the invoice total to the counterparty's denormalized
// balance: sales increase it, purchases decrease it.
func projectBalance(ctx context.Context, tx store.Tx, inv *store.Invoice) error {
	total, err := parseAmount(inv.Total)
	if err != nil {
		return fmt.Errorf("%w: invoice %s total: %v", ErrPosting, inv.ID, err)
	}
	if inv.Type == "purchase" {
		total = total.Neg()
	}
	if err := tx.AddToAccountBalance(ctx, inv.AccountID, amount(total)); err != nil {
		return fmt.Errorf("%w: update balance for account %s: %v", ErrPosting, inv.AccountID, err)
	}
	return nil
}

// verifyBalanced checks the double-entry invariant before anything is
// written: debits and credits both sum to the invoice total.
func verifyBalanced(entries []store.LedgerEntry, total decimal.Decimal) error {
	var debits, credits decimal.Decimal
	for _, e := range entries {
		d, err := parseAmount(e.Debit)
		if err != nil {
			return fmt.Errorf("%w: entry debit: %v", ErrPosting, err)
		}
		c, err := parseAmount(e.Credit)
		if err != nil {
			return fmt.Errorf("%w: entry credit: %v", ErrPosting, err)
		}
		debits = debits.Add(d)
		credits = credits.Add(c)
	}
	if !debits.Equal(credits) || !debits.Equal(total) {
		return fmt.Errorf("%w: unbalanced posting: debits %s, credits %s, total %s",
			ErrPosting, debits.StringFixed(2), credits.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

func debitEntry(ledgerID, accountID string, amt decimal.Decimal, description string) store.LedgerEntry {
	return store.LedgerEntry{
		ID:          uuid.NewString(),
		LedgerID:    ledgerID,
		AccountID:   accountID,
		Debit:       amount(amt),
		Credit:      "0.00",
		Description: description,
	}
}

func creditEntry(ledgerID, accountID string, amt decimal.Decimal, description string) store.LedgerEntry {
	return store.LedgerEntry{
		ID:          uuid.NewString(),
		LedgerID:    ledgerID,
		AccountID:   accountID,
		Debit:       "0.00",
		Credit:      amount(amt),
		Description: description,
	}
}

func newJournalNumber() string {
	return fmt.Sprintf("JNL-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
