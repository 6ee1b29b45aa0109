package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	totals, err := ComputeTotals([]LineInput{
		{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("50"), TaxRate: 20},
		{Description: "Support", Quantity: dec("1"), UnitPrice: dec("100"), TaxRate: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, "200.00", amount(totals.Subtotal))
	assert.Equal(t, "30.00", amount(totals.TaxTotal))
	assert.Equal(t, "230.00", amount(totals.Total))

	require.Len(t, totals.Lines, 2)
	assert.Equal(t, "100.00", amount(totals.Lines[0].LineTotal))
	assert.Equal(t, "20.00", amount(totals.Lines[0].TaxAmount))
	assert.Equal(t, "120.00", amount(totals.Lines[0].Total))
}

func TestComputeTotalsZeroTax(t *testing.T) {
	totals, err := ComputeTotals([]LineInput{
		{Description: "Export sale", Quantity: dec("3"), UnitPrice: dec("33.33"), TaxRate: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, "99.99", amount(totals.Subtotal))
	assert.Equal(t, "0.00", amount(totals.TaxTotal))
	assert.Equal(t, "99.99", amount(totals.Total))
}

func TestComputeTotalsRoundingInvariant(t *testing.T) {
	// Amounts chosen so the per-line rounding matters. Whatever the lines
	// produce, the header must satisfy total = subtotal + taxTotal exactly.
	cases := [][]LineInput{
		{
			{Description: "a", Quantity: dec("3"), UnitPrice: dec("0.10"), TaxRate: 18},
			{Description: "b", Quantity: dec("7"), UnitPrice: dec("0.07"), TaxRate: 18},
		},
		{
			{Description: "a", Quantity: dec("1.5"), UnitPrice: dec("99.99"), TaxRate: 1},
			{Description: "b", Quantity: dec("0.333"), UnitPrice: dec("3.333"), TaxRate: 8},
			{Description: "c", Quantity: dec("12"), UnitPrice: dec("0.005"), TaxRate: 20},
		},
	}

	for _, lines := range cases {
		totals, err := ComputeTotals(lines)
		require.NoError(t, err)
		assert.True(t, totals.Subtotal.Add(totals.TaxTotal).Equal(totals.Total),
			"subtotal %s + tax %s != total %s", amount(totals.Subtotal), amount(totals.TaxTotal), amount(totals.Total))
	}
}

func TestComputeTotalsValidation(t *testing.T) {
	cases := []struct {
		name  string
		lines []LineInput
	}{
		{"no lines", nil},
		{"missing description", []LineInput{{Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: 18}}},
		{"zero quantity", []LineInput{{Description: "x", Quantity: dec("0"), UnitPrice: dec("1"), TaxRate: 18}}},
		{"negative quantity", []LineInput{{Description: "x", Quantity: dec("-1"), UnitPrice: dec("1"), TaxRate: 18}}},
		{"negative unit price", []LineInput{{Description: "x", Quantity: dec("1"), UnitPrice: dec("-1"), TaxRate: 18}}},
		{"tax rate over 100", []LineInput{{Description: "x", Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: 101}}},
		{"negative tax rate", []LineInput{{Description: "x", Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: -1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeTotals(tc.lines)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
