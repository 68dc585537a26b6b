package models

import (
	"time"

	"github.com/google/uuid"
)

// IntentState is the state of one in-flight payment attempt.
type IntentState string

const (
	StateCreated                    IntentState = "created"
	StateOnlineAwaitingRedirect     IntentState = "online_awaiting_redirect"
	StateOnlinePolling              IntentState = "online_polling"
	StateManualAwaitingProof        IntentState = "manual_awaiting_proof"
	StateManualAwaitingVerification IntentState = "manual_awaiting_verification"
	StateSucceeded                  IntentState = "succeeded"
	StateFailed                     IntentState = "failed"
	StateExpired                    IntentState = "expired"
)

// Terminal reports whether the state has no outgoing transitions.
func (s IntentState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateExpired
}

// PaymentIntent is the aggregate root of one payment attempt. The
// identifiers and amount are immutable after creation; State and the
// observability counters are mutated only by the reconciliation engine.
// A terminal intent is never reused; retries create a fresh intent.
type PaymentIntent struct {
	ID                uuid.UUID
	InvoiceID         uuid.UUID
	BookingID         uuid.UUID
	TenantID          uuid.UUID
	Amount            int64 // must equal the invoice outstanding amount at creation
	Method            string
	ExternalReference string // gateway order id, set once for online intents
	State             IntentState
	LastCheckedAt     time.Time
	CheckAttempts     int
	CreatedAt         time.Time
}

// IntentSnapshot is the read-only view handed to the UI shell.
type IntentSnapshot struct {
	IntentID          uuid.UUID   `json:"intent_id"`
	InvoiceID         uuid.UUID   `json:"invoice_id"`
	State             IntentState `json:"state"`
	Method            string      `json:"method"`
	Amount            int64       `json:"amount"`
	ExternalReference string      `json:"external_reference,omitempty"`
	CheckAttempts     int         `json:"check_attempts"`
	LastCheckedAt     time.Time   `json:"last_checked_at"`
	SecondsRemaining  int         `json:"seconds_remaining"`
}
