package providers

import (
	"context"
	"errors"

	"tenant-payment-service/models"
)

// Normalized gateway status vocabulary. Every provider maps its own raw
// statuses into these strings before they reach the reconciliation engine,
// so the engine keeps a single terminal-classification table.
const (
	StatusSettlement = "settlement"
	StatusCapture    = "capture"
	StatusPending    = "pending"
	StatusDeny       = "deny"
	StatusCancel     = "cancel"
	StatusExpire     = "expire"
	StatusFailure    = "failure"
)

var (
	// ErrNotFound means the gateway has no transaction for the reference.
	ErrNotFound = errors.New("gateway transaction not found")
	// ErrGatewayRejected means the provider declined to create the
	// transaction (invalid amount, inactive invoice). Terminal for the intent.
	ErrGatewayRejected = errors.New("gateway rejected transaction")
)

// RedirectInfo is what a provider returns when opening a hosted payment page.
type RedirectInfo struct {
	RedirectURL       string
	ExternalReference string
}

// PaymentProvider abstracts the external payment gateway. A "pending"
// business status is a valid successful CheckStatus response, never an error.
type PaymentProvider interface {
	// CreateRedirect requests a hosted payment page for the intent and
	// returns its URL plus the gateway-assigned reference.
	CreateRedirect(ctx context.Context, intent *models.PaymentIntent) (RedirectInfo, error)

	// CheckStatus returns the normalized status string for a reference.
	CheckStatus(ctx context.Context, externalReference string) (string, error)
}
