package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/finance-core/internal/integration"
	"github.com/example/finance-core/internal/store"
	"github.com/example/finance-core/pkg/audit"
)

const providerTimeout = 15 * time.Second

// Dispatcher submits invoices to an external e-invoice authority. Provider
// calls run outside any datastore transaction and are bounded by
// providerTimeout. When directory resolution fails the dispatcher falls
// back to the sandbox provider, so dispatch itself never depends on a live
// integration being configured.
type Dispatcher struct {
	store        store.Store
	directory    *integration.Directory
	providerName string
	sandbox      integration.EInvoiceProvider
	auditor      *audit.Trail
	logger       *slog.Logger
}

// NewDispatcher creates a dispatcher that resolves the named provider from
// the directory for each organization. The auditor may be nil.
func NewDispatcher(st store.Store, directory *integration.Directory, providerName string, auditor *audit.Trail, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:        st,
		directory:    directory,
		providerName: providerName,
		sandbox:      integration.NewSandboxEInvoiceProvider(),
		auditor:      auditor,
		logger:       logger,
	}
}

// DispatchResult reports a completed submission.
type DispatchResult struct {
	Success       bool   `json:"success"`
	InvoiceID     string `json:"invoice_id"`
	DocumentID    string `json:"document_id"`
	InvoiceNumber string `json:"invoice_number"`
	GIBStatus     string `json:"gib_status"`
}

// Send loads the invoice and its counterparty, validates the receiver's tax
// id, submits the document, and records the authority-assigned number and
// status on the invoice. An empty providerName selects the configured
// default.
func (d *Dispatcher) Send(ctx context.Context, invoiceID, providerName string) (*DispatchResult, error) {
	inv, err := d.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s", ErrNotFound, invoiceID)
		}
		return nil, fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	account, err := d.store.GetAccount(ctx, inv.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", ErrNotFound, inv.AccountID)
		}
		return nil, fmt.Errorf("load account %s: %w", inv.AccountID, err)
	}
	if !integration.ValidTaxID(account.TaxID) {
		return nil, fmt.Errorf("%w: account %s has no valid tax id", ErrValidation, account.ID)
	}
	lines, err := d.store.ListInvoiceLines(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice lines: %w", err)
	}

	items := make([]integration.EInvoiceItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, integration.EInvoiceItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			Total:       l.Total,
		})
	}
	payload := integration.EInvoicePayload{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.InvoiceDate,
		Currency:      inv.Currency,
		PayableAmount: inv.Total,
		ReceiverTaxID: account.TaxID,
		ReceiverName:  account.Name,
		Items:         items,
	}

	provider := d.providerFor(inv.OrganizationID, providerName)
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	doc, err := provider.SendInvoice(callCtx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: send invoice %s: %v", ErrIntegrationUnavailable, invoiceID, err)
	}

	if err := d.store.UpdateInvoiceDispatch(ctx, inv.ID, doc.ID, doc.Status); err != nil {
		return nil, fmt.Errorf("record dispatch for invoice %s: %w", inv.ID, err)
	}

	d.auditor.Record(ctx, audit.EInvoiceDispatched, inv.ID, map[string]string{
		"organization_id": inv.OrganizationID,
		"document_id":     doc.ID,
		"gib_status":      doc.Status,
	})
	d.logger.Info("e-invoice dispatched",
		"invoice_id", inv.ID,
		"document_id", doc.ID,
		"gib_status", doc.Status)

	return &DispatchResult{
		Success:       true,
		InvoiceID:     inv.ID,
		DocumentID:    doc.ID,
		InvoiceNumber: doc.ID,
		GIBStatus:     doc.Status,
	}, nil
}

// CheckUser asks the authority whether a tax id belongs to a registered
// e-invoice user. A nil user with a nil error means not registered. An
// empty providerName selects the configured default.
func (d *Dispatcher) CheckUser(ctx context.Context, organizationID, taxID, providerName string) (*integration.EInvoiceUser, error) {
	if !integration.ValidTaxID(taxID) {
		return nil, fmt.Errorf("%w: tax id must be 10 or 11 digits", ErrValidation)
	}
	provider := d.providerFor(organizationID, providerName)
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	user, err := provider.CheckUser(callCtx, taxID)
	if err != nil {
		return nil, fmt.Errorf("%w: check user %s: %v", ErrIntegrationUnavailable, taxID, err)
	}
	return user, nil
}

func (d *Dispatcher) providerFor(organizationID, name string) integration.EInvoiceProvider {
	if name == "" {
		name = d.providerName
	}
	provider, err := d.directory.EInvoiceProviderFor(organizationID, name)
	if err != nil {
		d.logger.Warn("no e-invoice provider configured, using sandbox",
			"organization_id", organizationID,
			"provider", name,
			"error", err)
		return d.sandbox
	}
	return provider
}
