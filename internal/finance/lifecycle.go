package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/finance-core/internal/store"
	"github.com/example/finance-core/pkg/audit"
)

// Service drives the invoice lifecycle: creation, approval with its ledger
// posting, and the hand-off to the e-invoice dispatcher.
type Service struct {
	store      store.Store
	dispatcher *Dispatcher
	auditor    *audit.Trail
	logger     *slog.Logger
}

// NewService creates the lifecycle service. The dispatcher may be nil, in
// which case created e-invoices stay pending until dispatched explicitly.
func NewService(st store.Store, dispatcher *Dispatcher, auditor *audit.Trail, logger *slog.Logger) *Service {
	return &Service{
		store:      st,
		dispatcher: dispatcher,
		auditor:    auditor,
		logger:     logger,
	}
}

// CreateInvoiceInput is the caller's request to create an invoice.
type CreateInvoiceInput struct {
	OrganizationID string      `json:"organization_id"`
	AccountID      string      `json:"account_id"`
	Type           string      `json:"type"`
	InvoiceDate    time.Time   `json:"invoice_date"`
	DueDate        *time.Time  `json:"due_date,omitempty"`
	Currency       string      `json:"currency,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	EInvoice       bool        `json:"e_invoice"`
	CreatedBy      string      `json:"created_by"`
	Lines          []LineInput `json:"lines"`
}

func (in *CreateInvoiceInput) validate() error {
	if in.OrganizationID == "" {
		return fmt.Errorf("%w: organization id is required", ErrValidation)
	}
	if in.AccountID == "" {
		return fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if in.Type != "sales" && in.Type != "purchase" {
		return fmt.Errorf("%w: invoice type must be sales or purchase, got %q", ErrValidation, in.Type)
	}
	return nil
}

// CreateInvoice computes the invoice totals, persists the header and lines
// in one unit of work, and, for e-invoices, attempts dispatch after the
// commit. A dispatch failure never fails creation: the invoice stays in
// draft with gib status pending and can be dispatched again later.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*store.Invoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	totals, err := ComputeTotals(in.Lines)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	invoiceDate := in.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = now
	}
	currency := in.Currency
	if currency == "" {
		currency = "TRY"
	}
	gibStatus := ""
	if in.EInvoice {
		gibStatus = "pending"
	}

	inv := &store.Invoice{
		ID:             uuid.NewString(),
		OrganizationID: in.OrganizationID,
		AccountID:      in.AccountID,
		Type:           in.Type,
		InvoiceNumber:  newInvoiceNumber(),
		InvoiceDate:    invoiceDate,
		DueDate:        in.DueDate,
		Status:         "draft",
		Subtotal:       amount(totals.Subtotal),
		TaxTotal:       amount(totals.TaxTotal),
		Total:          amount(totals.Total),
		Currency:       currency,
		Notes:          in.Notes,
		GIBStatus:      gibStatus,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	lines := make([]store.InvoiceLine, 0, len(totals.Lines))
	for _, l := range totals.Lines {
		lines = append(lines, store.InvoiceLine{
			ID:          uuid.NewString(),
			InvoiceID:   inv.ID,
			Description: l.Description,
			Quantity:    l.Quantity.String(),
			UnitPrice:   amount(l.UnitPrice),
			TaxRate:     l.TaxRate,
			TaxAmount:   amount(l.TaxAmount),
			Total:       amount(l.Total),
		})
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if err := tx.InsertInvoiceLines(ctx, lines); err != nil {
			return fmt.Errorf("insert invoice lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.InvoiceCreated, inv.ID, map[string]string{
		"organization_id": inv.OrganizationID,
		"invoice_number":  inv.InvoiceNumber,
		"type":            inv.Type,
		"total":           inv.Total,
	})

	// Network calls never run inside the unit of work. The invoice is
	// committed by now, so a provider failure only leaves it pending.
	if in.EInvoice && s.dispatcher != nil {
		if _, err := s.dispatcher.Send(ctx, inv.ID, ""); err != nil {
			s.logger.Warn("e-invoice dispatch after create failed",
				"invoice_id", inv.ID,
				"error", err)
		} else if refreshed, err := s.store.GetInvoice(ctx, inv.ID); err == nil {
			inv = refreshed
		}
	}

	return inv, nil
}

// ApprovalResult reports a successful approval.
type ApprovalResult struct {
	Success   bool   `json:"success"`
	InvoiceID string `json:"invoice_id"`
	LedgerID  string `json:"ledger_id"`
}

// Approve transitions a draft invoice to sent and, atomically with the
// transition, records the counterparty transaction, posts the double-entry
// ledger, and projects the account balance. Approval is not idempotent:
// exactly one caller wins the draft-to-sent transition, every other caller
// gets ErrInvalidState and writes nothing.
func (s *Service) Approve(ctx context.Context, invoiceID, userID string) (*ApprovalResult, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("%w: invoice id is required", ErrValidation)
	}

	var ledgerID string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inv, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, store.ErrNoRows) {
				return fmt.Errorf("%w: invoice %s", ErrNotFound, invoiceID)
			}
			return fmt.Errorf("load invoice %s: %w", invoiceID, err)
		}
		if inv.Status != "draft" {
			return fmt.Errorf("%w: invoice %s is %s, only draft invoices can be approved",
				ErrInvalidState, invoiceID, inv.Status)
		}

		changed, err := tx.MarkInvoiceSent(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("mark invoice sent: %w", err)
		}
		if !changed {
			return fmt.Errorf("%w: invoice %s left draft concurrently", ErrInvalidState, invoiceID)
		}

		if err := recordInvoiceTransaction(ctx, tx, inv, userID); err != nil {
			return err
		}

		ledgerID, err = postLedger(ctx, tx, inv)
		if err != nil {
			return err
		}

		return projectBalance(ctx, tx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.InvoiceApproved, invoiceID, map[string]string{
		"ledger_id":   ledgerID,
		"approved_by": userID,
	})
	s.logger.Info("invoice approved",
		"invoice_id", invoiceID,
		"ledger_id", ledgerID,
		"approved_by", userID)

	return &ApprovalResult{Success: true, InvoiceID: invoiceID, LedgerID: ledgerID}, nil
}

// recordInvoiceTransaction writes the single-entry counterparty movement
// mirroring the invoice: positive for sales, negative for purchases.
func recordInvoiceTransaction(ctx context.Context, tx store.Tx, inv *store.Invoice, userID string) error {
	total, err := parseAmount(inv.Total)
	if err != nil {
		return fmt.Errorf("%w: invoice %s total: %v", ErrPosting, inv.ID, err)
	}
	category := "sales_invoice"
	if inv.Type == "purchase" {
		category = "purchase_invoice"
		total = total.Neg()
	}
	inserted, err := tx.InsertTransaction(ctx, &store.Transaction{
		ID:             uuid.NewString(),
		OrganizationID: inv.OrganizationID,
		AccountID:      inv.AccountID,
		Date:           inv.InvoiceDate,
		Amount:         amount(total),
		Description:    fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
		Category:       category,
		ReferenceID:    inv.ID,
		ReferenceType:  "invoice",
		CreatedBy:      userID,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert invoice transaction: %w", err)
	}
	if !inserted {
		return fmt.Errorf("%w: transaction for invoice %s already recorded", ErrInvalidState, inv.ID)
	}
	return nil
}

func newInvoiceNumber() string {
	return fmt.Sprintf("INV-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
