package services

import "errors"

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

var (
	// ErrInvalidState marks a state-machine call that is never expected in
	// correct usage. Programming error: logged loudly, not retried.
	ErrInvalidState = errors.New("invalid intent state for operation")

	// ErrSubmissionRejected means the backend refused the manual proof
	// (e.g. duplicate detection). Terminal for the current intent.
	ErrSubmissionRejected = errors.New("manual payment submission rejected")

	// ErrPendingPaymentExists means a pending manual payment already covers
	// the invoice, so a new submission is blocked before any network call.
	ErrPendingPaymentExists = errors.New("a pending payment already exists for this invoice")

	// ErrSessionNotFound means no live payment session matches the intent id.
	ErrSessionNotFound = errors.New("payment session not found")
)
