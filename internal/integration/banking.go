package integration

import (
	"context"
	"time"
)

// BankTransaction is one statement row fetched from a banking provider.
// Amount is a signed 2-decimal fixed-point string.
type BankTransaction struct {
	Date        time.Time `json:"date"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	ExternalID  string    `json:"external_id"`
}

// BankingProvider is the capability interface for bank statement feeds.
type BankingProvider interface {
	GetTransactions(ctx context.Context, accountNumber string, from time.Time) ([]BankTransaction, error)
}
