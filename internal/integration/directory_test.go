package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryResolution(t *testing.T) {
	d := NewDirectory()
	sandbox := NewSandboxEInvoiceProvider()
	d.RegisterEInvoiceProvider("org-1", "gib", sandbox)

	p, err := d.EInvoiceProviderFor("org-1", "gib")
	require.NoError(t, err)
	assert.Same(t, sandbox, p.(*SandboxEInvoiceProvider))

	_, err = d.EInvoiceProviderFor("org-1", "other")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	_, err = d.EInvoiceProviderFor("org-2", "gib")
	assert.ErrorIs(t, err, ErrProviderNotFound, "registrations are per organization")

	_, err = d.BankingProviderFor("org-1", "gib")
	assert.ErrorIs(t, err, ErrProviderNotFound, "e-invoice and banking registries are separate")
}

func TestValidTaxID(t *testing.T) {
	assert.True(t, ValidTaxID("1234567890"), "10 digit VKN")
	assert.True(t, ValidTaxID("12345678901"), "11 digit TCKN")
	assert.False(t, ValidTaxID(""))
	assert.False(t, ValidTaxID("123456789"))
	assert.False(t, ValidTaxID("123456789012"))
	assert.False(t, ValidTaxID("12345abc90"))
}

func TestSandboxProvider(t *testing.T) {
	p := NewSandboxEInvoiceProvider()
	ctx := context.Background()

	user, err := p.CheckUser(ctx, "1234567890")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "1234567890", user.TaxID)

	user, err = p.CheckUser(ctx, "bogus")
	require.NoError(t, err)
	assert.Nil(t, user, "unregistered rather than an error")

	doc, err := p.SendInvoice(ctx, EInvoicePayload{InvoiceID: "inv-1"})
	require.NoError(t, err)
	assert.Contains(t, doc.ID, "SBX")
	assert.Equal(t, "sent", doc.Status)

	_, err = p.SendInvoice(ctx, EInvoicePayload{})
	assert.Error(t, err)
}
