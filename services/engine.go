package services

import (
	"fmt"
	"sync"
	"time"

	"tenant-payment-service/models"

	"go.uber.org/zap"
)

// signalOutcome is the terminal classification of a gateway status string.
type signalOutcome int

const (
	outcomeUnknown signalOutcome = iota
	outcomePending
	outcomeSuccess
	outcomeFailure
	outcomeExpired
)

// statusOutcomes is the single normalization table shared by the online and
// manual paths. Anything not listed is treated as "no transition"; the
// engine never guesses success from an unrecognized status.
var statusOutcomes = map[string]signalOutcome{
	"settlement": outcomeSuccess,
	"capture":    outcomeSuccess,
	"success":    outcomeSuccess,
	"verified":   outcomeSuccess,
	"deny":       outcomeFailure,
	"cancel":     outcomeFailure,
	"expire":     outcomeFailure,
	"failure":    outcomeFailure,
	"failed":     outcomeFailure,
	"expired":    outcomeExpired,
	"pending":    outcomePending,
}

func classifyStatus(raw string) signalOutcome {
	if outcome, ok := statusOutcomes[raw]; ok {
		return outcome
	}
	return outcomeUnknown
}

// ReconciliationEngine owns the state of one PaymentIntent and merges
// status signals from the gateway client, invoice lookups and payment-record
// lookups into a single authoritative state. All mutation goes through the
// engine; other components only report signals. Signals are applied in
// arrival order, and signals arriving after a terminal state are no-ops.
type ReconciliationEngine struct {
	mu     sync.Mutex
	intent *models.PaymentIntent
	logger *zap.Logger

	// secondsRemaining is supplied by the owning scheduler so snapshots can
	// expose the countdown without the engine owning a timer.
	secondsRemaining func() int
	onTransition     func(models.IntentSnapshot)
}

// NewReconciliationEngine creates an engine around a freshly created intent.
func NewReconciliationEngine(intent *models.PaymentIntent, logger *zap.Logger) *ReconciliationEngine {
	if intent.State == "" {
		intent.State = models.StateCreated
	}
	return &ReconciliationEngine{intent: intent, logger: logger}
}

// SetCountdown wires the countdown accessor used by Snapshot.
func (e *ReconciliationEngine) SetCountdown(fn func() int) {
	e.mu.Lock()
	e.secondsRemaining = fn
	e.mu.Unlock()
}

// SetOnTransition registers the observer invoked after every state change.
// The callback runs outside the engine lock.
func (e *ReconciliationEngine) SetOnTransition(fn func(models.IntentSnapshot)) {
	e.mu.Lock()
	e.onTransition = fn
	e.mu.Unlock()
}

// Start moves a Created intent onto the chosen path.
func (e *ReconciliationEngine) Start(method string) error {
	e.mu.Lock()
	if e.intent.State != models.StateCreated {
		state := e.intent.State
		e.mu.Unlock()
		e.logger.Error("Start called on non-created intent",
			zap.String("intent_id", e.intent.ID.String()),
			zap.String("state", string(state)),
		)
		return fmt.Errorf("%w: start from %s", ErrInvalidState, state)
	}

	e.intent.Method = method
	switch method {
	case models.PaymentMethodOnline:
		e.intent.State = models.StateOnlineAwaitingRedirect
	case models.PaymentMethodManual:
		e.intent.State = models.StateManualAwaitingProof
	default:
		e.mu.Unlock()
		return fmt.Errorf("%w: unknown method %q", ErrInvalidState, method)
	}
	notify := e.notifyLocked()
	e.mu.Unlock()
	notify()
	return nil
}

// SetExternalReference records the gateway-assigned order id. Set once.
func (e *ReconciliationEngine) SetExternalReference(ref string) {
	e.mu.Lock()
	if e.intent.ExternalReference == "" {
		e.intent.ExternalReference = ref
	}
	e.mu.Unlock()
}

// BeginPolling marks the redirect as opened and starts the polling phase.
func (e *ReconciliationEngine) BeginPolling() error {
	e.mu.Lock()
	if e.intent.State != models.StateOnlineAwaitingRedirect {
		state := e.intent.State
		e.mu.Unlock()
		return fmt.Errorf("%w: begin polling from %s", ErrInvalidState, state)
	}
	e.intent.State = models.StateOnlinePolling
	notify := e.notifyLocked()
	e.mu.Unlock()
	notify()
	return nil
}

// ReportGatewaySignal feeds a raw gateway status into the state machine.
// "pending" only touches the observability counters; terminal
// classifications transition OnlinePolling to Succeeded or Failed; unknown
// statuses are logged and ignored.
func (e *ReconciliationEngine) ReportGatewaySignal(rawStatus string) {
	e.mu.Lock()
	if e.intent.State.Terminal() {
		e.mu.Unlock()
		return
	}

	e.intent.LastCheckedAt = time.Now()
	e.intent.CheckAttempts++

	if e.intent.State != models.StateOnlinePolling {
		e.mu.Unlock()
		return
	}

	notify := e.applySignalLocked(rawStatus)
	e.mu.Unlock()
	notify()
}

// ReportManualSubmissionAccepted records that the proof was accepted by the
// backend. Manual intents never self-transition to a terminal state from
// the client side; that happens out-of-band via RefreshFromRecord.
func (e *ReconciliationEngine) ReportManualSubmissionAccepted() error {
	e.mu.Lock()
	if e.intent.State != models.StateManualAwaitingProof {
		state := e.intent.State
		e.mu.Unlock()
		e.logger.Error("Manual submission accepted in unexpected state",
			zap.String("intent_id", e.intent.ID.String()),
			zap.String("state", string(state)),
		)
		return fmt.Errorf("%w: manual submission from %s", ErrInvalidState, state)
	}
	e.intent.State = models.StateManualAwaitingVerification
	notify := e.notifyLocked()
	e.mu.Unlock()
	notify()
	return nil
}

// RefreshFromRecord reconciles the intent against the persisted payment
// record, using the same normalization table as gateway signals. Valid from
// ManualAwaitingVerification or OnlinePolling.
func (e *ReconciliationEngine) RefreshFromRecord(record *models.Payment) {
	e.mu.Lock()
	if e.intent.State.Terminal() {
		e.mu.Unlock()
		return
	}
	if e.intent.State != models.StateManualAwaitingVerification && e.intent.State != models.StateOnlinePolling {
		e.mu.Unlock()
		return
	}

	e.intent.LastCheckedAt = time.Now()
	e.intent.CheckAttempts++
	notify := e.applySignalLocked(record.Status)
	e.mu.Unlock()
	notify()
}

// Fail moves any non-terminal intent to Failed. Used for business-terminal
// rejections (gateway declined the transaction, tenant cancelled).
func (e *ReconciliationEngine) Fail(reason string) {
	e.mu.Lock()
	if e.intent.State.Terminal() {
		e.mu.Unlock()
		return
	}
	e.intent.State = models.StateFailed
	notify := e.notifyLocked()
	e.mu.Unlock()
	notify()
	e.logger.Info("Payment intent failed",
		zap.String("intent_id", e.intent.ID.String()),
		zap.String("reason", reason),
	)
}

// Expire moves any non-terminal intent to Expired. Called by the countdown.
func (e *ReconciliationEngine) Expire() {
	e.mu.Lock()
	if e.intent.State.Terminal() {
		e.mu.Unlock()
		return
	}
	e.intent.State = models.StateExpired
	notify := e.notifyLocked()
	e.mu.Unlock()
	notify()
	e.logger.Info("Payment intent expired",
		zap.String("intent_id", e.intent.ID.String()),
		zap.String("invoice_id", e.intent.InvoiceID.String()),
	)
}

// State returns the current intent state.
func (e *ReconciliationEngine) State() models.IntentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intent.State
}

// Snapshot returns the read-only view consumed by the UI shell.
func (e *ReconciliationEngine) Snapshot() models.IntentSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *ReconciliationEngine) snapshotLocked() models.IntentSnapshot {
	snap := models.IntentSnapshot{
		IntentID:          e.intent.ID,
		InvoiceID:         e.intent.InvoiceID,
		State:             e.intent.State,
		Method:            e.intent.Method,
		Amount:            e.intent.Amount,
		ExternalReference: e.intent.ExternalReference,
		CheckAttempts:     e.intent.CheckAttempts,
		LastCheckedAt:     e.intent.LastCheckedAt,
	}
	if e.secondsRemaining != nil {
		snap.SecondsRemaining = e.secondsRemaining()
	}
	return snap
}

// applySignalLocked classifies a raw status and performs the transition.
// Must be called with the lock held; returns the notification to run after
// the lock is released.
func (e *ReconciliationEngine) applySignalLocked(rawStatus string) func() {
	switch classifyStatus(rawStatus) {
	case outcomeSuccess:
		e.intent.State = models.StateSucceeded
		return e.notifyLocked()
	case outcomeFailure:
		e.intent.State = models.StateFailed
		return e.notifyLocked()
	case outcomeExpired:
		e.intent.State = models.StateExpired
		return e.notifyLocked()
	case outcomePending:
		return func() {}
	default:
		e.logger.Warn("Unknown gateway status, no transition",
			zap.String("intent_id", e.intent.ID.String()),
			zap.String("raw_status", rawStatus),
		)
		return func() {}
	}
}

// notifyLocked captures the observer and snapshot under the lock and returns
// a closure that fires outside it, so observers may call back into the engine.
func (e *ReconciliationEngine) notifyLocked() func() {
	if e.onTransition == nil {
		return func() {}
	}
	fn := e.onTransition
	snap := e.snapshotLocked()
	return func() { fn(snap) }
}
