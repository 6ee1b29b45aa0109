// Package audit records business events on a hash-chained trail so the
// sequence of financial actions can be verified after the fact.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventType names a recorded business action.
type EventType string

const (
	InvoiceCreated     EventType = "invoice.created"
	InvoiceApproved    EventType = "invoice.approved"
	EInvoiceDispatched EventType = "einvoice.dispatched"
	BankSyncCompleted  EventType = "bank.sync.completed"
	RequestHandled     EventType = "http.request"
)

// Entry is one event on the trail. Hash covers the previous hash, the
// timestamp, and the payload, so any edit breaks the chain from that point.
type Entry struct {
	Timestamp    string    `json:"timestamp"`
	PreviousHash string    `json:"previous_hash"`
	Type         EventType `json:"type"`
	Subject      string    `json:"subject"`
	Payload      string    `json:"payload"`
	Hash         string    `json:"hash"`
}

// Trail is an append-only, hash-chained event log. Safe for concurrent use.
type Trail struct {
	mu       sync.Mutex
	previous string
	entries  []Entry

	// Correlate, when set, extracts a correlation id from the context and
	// folds it into the payload.
	Correlate func(ctx context.Context) string
}

// NewTrail creates an empty trail anchored on a zero hash.
func NewTrail() *Trail {
	return &Trail{previous: strings.Repeat("0", 64)}
}

// Record appends an event for the given subject. Attribute maps are
// serialized deterministically into the hashed payload.
func (t *Trail) Record(ctx context.Context, eventType EventType, subject string, attrs map[string]string) Entry {
	if t == nil {
		return Entry{}
	}
	payload := map[string]string{}
	for k, v := range attrs {
		payload[k] = v
	}
	if t.Correlate != nil {
		if cid := t.Correlate(ctx); cid != "" {
			payload["correlation_id"] = cid
		}
	}
	encoded, _ := json.Marshal(payload)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := Entry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		PreviousHash: t.previous,
		Type:         eventType,
		Subject:      subject,
		Payload:      string(encoded),
	}
	entry.Hash = hashEntry(entry)

	t.previous = entry.Hash
	t.entries = append(t.entries, entry)
	return entry
}

// Entries returns a snapshot of the trail.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Verify checks that a slice of entries forms an unbroken hash chain.
func Verify(entries []Entry) bool {
	for i, entry := range entries {
		if i > 0 && entry.PreviousHash != entries[i-1].Hash {
			return false
		}
		if hashEntry(entry) != entry.Hash {
			return false
		}
	}
	return true
}

func hashEntry(e Entry) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s", e.PreviousHash, e.Timestamp, e.Type, e.Subject, e.Payload)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
