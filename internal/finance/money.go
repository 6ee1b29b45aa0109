package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineInput is one invoice line as submitted by the caller.
type LineInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     int             `json:"tax_rate"`
}

// ComputedLine is a line with its derived amounts.
type ComputedLine struct {
	LineInput
	LineTotal decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// InvoiceTotals aggregates the computed lines of one invoice.
// Total = Subtotal + TaxTotal always holds.
type InvoiceTotals struct {
	Lines    []ComputedLine
	Subtotal decimal.Decimal
	TaxTotal decimal.Decimal
	Total    decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// ComputeTotals validates the lines and derives all monetary amounts on
// exact decimals. Per line: lineTotal = quantity * unitPrice,
// taxAmount = round2(lineTotal * taxRate / 100),
// total = round2(lineTotal + taxAmount).
func ComputeTotals(lines []LineInput) (*InvoiceTotals, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: invoice requires at least one line", ErrValidation)
	}

	totals := &InvoiceTotals{Lines: make([]ComputedLine, 0, len(lines))}

	for i, line := range lines {
		if line.Description == "" {
			return nil, fmt.Errorf("%w: line %d: description is required", ErrValidation, i+1)
		}
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: line %d: quantity must be positive", ErrValidation, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d: unit price must not be negative", ErrValidation, i+1)
		}
		if line.TaxRate < 0 || line.TaxRate > 100 {
			return nil, fmt.Errorf("%w: line %d: tax rate must be between 0 and 100", ErrValidation, i+1)
		}

		lineTotal := line.Quantity.Mul(line.UnitPrice).Round(2)
		taxAmount := lineTotal.Mul(decimal.NewFromInt(int64(line.TaxRate))).Div(oneHundred).Round(2)

		computed := ComputedLine{
			LineInput: line,
			LineTotal: lineTotal,
			TaxAmount: taxAmount,
			Total:     lineTotal.Add(taxAmount).Round(2),
		}
		totals.Lines = append(totals.Lines, computed)
		totals.Subtotal = totals.Subtotal.Add(lineTotal)
		totals.TaxTotal = totals.TaxTotal.Add(taxAmount)
	}

	totals.Subtotal = totals.Subtotal.Round(2)
	totals.TaxTotal = totals.TaxTotal.Round(2)
	totals.Total = totals.Subtotal.Add(totals.TaxTotal)

	return totals, nil
}

// amount renders a decimal as the 2-decimal fixed-point string the store
// exchanges.
func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// parseAmount reads a stored fixed-point string back into a decimal.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: malformed amount %q", ErrValidation, s)
	}
	return d, nil
}
