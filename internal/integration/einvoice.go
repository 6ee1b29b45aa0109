package integration

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// EInvoiceUser identifies a registered e-invoice taxpayer at the authority.
type EInvoiceUser struct {
	TaxID string `json:"tax_id"`
	Title string `json:"title"`
	Alias string `json:"alias"`
}

// EInvoiceItem is one line of the provider-agnostic dispatch payload.
type EInvoiceItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxRate     int    `json:"tax_rate"`
	Total       string `json:"total"`
}

// EInvoicePayload is the provider-agnostic document sent to an authority.
type EInvoicePayload struct {
	InvoiceID     string         `json:"invoice_id"`
	InvoiceNumber string         `json:"invoice_number"`
	IssueDate     time.Time      `json:"issue_date"`
	Currency      string         `json:"currency"`
	PayableAmount string         `json:"payable_amount"`
	ReceiverTaxID string         `json:"receiver_tax_id"`
	ReceiverName  string         `json:"receiver_name"`
	Items         []EInvoiceItem `json:"items"`
}

// EInvoiceDocument is the authority's answer to a dispatch: the official
// document id and the submission status.
type EInvoiceDocument struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// EInvoiceProvider is the capability interface every e-invoice authority
// integration implements, the sandbox included.
type EInvoiceProvider interface {
	CheckUser(ctx context.Context, taxID string) (*EInvoiceUser, error)
	SendInvoice(ctx context.Context, payload EInvoicePayload) (*EInvoiceDocument, error)
}

var taxIDPattern = regexp.MustCompile(`^\d{10}(\d)?$`)

// ValidTaxID reports whether a VKN (10 digits) or TCKN (11 digits) is
// well-formed.
func ValidTaxID(taxID string) bool {
	return taxIDPattern.MatchString(taxID)
}

// SandboxEInvoiceProvider is the fixed fallback used whenever directory
// resolution fails, so dispatch always completes outside production. It
// accepts every well-formed payload and assigns SBX document ids.
type SandboxEInvoiceProvider struct{}

// NewSandboxEInvoiceProvider creates the sandbox provider.
func NewSandboxEInvoiceProvider() *SandboxEInvoiceProvider {
	return &SandboxEInvoiceProvider{}
}

func (s *SandboxEInvoiceProvider) CheckUser(ctx context.Context, taxID string) (*EInvoiceUser, error) {
	if !ValidTaxID(taxID) {
		return nil, nil
	}
	return &EInvoiceUser{
		TaxID: taxID,
		Title: "Sandbox Taxpayer " + taxID,
		Alias: "urn:mail:defaultpk@sandbox.gov.tr",
	}, nil
}

func (s *SandboxEInvoiceProvider) SendInvoice(ctx context.Context, payload EInvoicePayload) (*EInvoiceDocument, error) {
	if payload.InvoiceID == "" {
		return nil, fmt.Errorf("sandbox: invoice id is required")
	}
	return &EInvoiceDocument{
		ID:     fmt.Sprintf("SBX%d-%s", time.Now().Year(), uuid.NewString()[:8]),
		Status: "sent",
	}, nil
}
