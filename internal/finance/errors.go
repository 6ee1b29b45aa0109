// Package finance implements the financial ledger engine: invoice totals,
// double-entry postings, chart-of-accounts provisioning, counterparty
// balances, and the integration-facing dispatch and import flows.
package finance

import "errors"

var (
	// ErrValidation marks malformed input, an invoice with no lines
	// included. Surfaced to the caller, never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing invoice or account.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks a lifecycle transition attempted from the
	// wrong status, approving a non-draft invoice included. The losing
	// side of a concurrent approval race gets this error and no ledger.
	ErrInvalidState = errors.New("invalid state")

	// ErrPosting marks a failed or unbalanced ledger write. Fatal: the
	// whole unit of work rolls back and nothing is retried.
	ErrPosting = errors.New("posting error")

	// ErrIntegrationUnavailable marks a failed provider resolution or an
	// unreachable external integration. The e-invoice path falls back to
	// the sandbox; the banking path propagates it.
	ErrIntegrationUnavailable = errors.New("integration unavailable")
)
