// Package integration holds the pluggable external-provider boundary:
// e-invoice authorities and banks are capability interfaces resolved through
// a directory keyed by (organization, provider name).
package integration

import (
	"errors"
	"fmt"
	"sync"
)

// ErrProviderNotFound is returned when no provider is registered under the
// requested (organization, name) key.
var ErrProviderNotFound = errors.New("integration: provider not found")

type providerKey struct {
	organizationID string
	name           string
}

// Directory is an in-process registry of integration providers per
// organization. It is safe for concurrent use.
type Directory struct {
	mu       sync.RWMutex
	einvoice map[providerKey]EInvoiceProvider
	banking  map[providerKey]BankingProvider
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		einvoice: make(map[providerKey]EInvoiceProvider),
		banking:  make(map[providerKey]BankingProvider),
	}
}

// RegisterEInvoiceProvider binds an e-invoice provider for an organization.
func (d *Directory) RegisterEInvoiceProvider(organizationID, name string, p EInvoiceProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.einvoice[providerKey{organizationID, name}] = p
}

// RegisterBankingProvider binds a banking provider for an organization.
func (d *Directory) RegisterBankingProvider(organizationID, name string, p BankingProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.banking[providerKey{organizationID, name}] = p
}

// EInvoiceProviderFor resolves the e-invoice provider registered for the
// organization under the given name.
func (d *Directory) EInvoiceProviderFor(organizationID, name string) (EInvoiceProvider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.einvoice[providerKey{organizationID, name}]
	if !ok {
		return nil, fmt.Errorf("e-invoice provider %q for organization %s: %w", name, organizationID, ErrProviderNotFound)
	}
	return p, nil
}

// BankingProviderFor resolves the banking provider registered for the
// organization under the given name.
func (d *Directory) BankingProviderFor(organizationID, name string) (BankingProvider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.banking[providerKey{organizationID, name}]
	if !ok {
		return nil, fmt.Errorf("banking provider %q for organization %s: %w", name, organizationID, ErrProviderNotFound)
	}
	return p, nil
}
