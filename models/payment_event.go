package models

import "time"

// PaymentEvent is published to Kafka when an intent reaches a terminal state.
type PaymentEvent struct {
	Type              string    `json:"type"` // payment_succeeded, payment_failed, payment_expired
	PaymentID         string    `json:"payment_id,omitempty"`
	InvoiceID         string    `json:"invoice_id"`
	TenantID          string    `json:"tenant_id"`
	Method            string    `json:"method"`
	Amount            int64     `json:"amount"`
	ExternalReference string    `json:"external_reference,omitempty"`
	Timestamp         time.Time `json:"timestamp"` // UTC event time
}
