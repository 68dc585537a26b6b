package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tenant-payment-service/models"
	"tenant-payment-service/providers"
	"tenant-payment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// consecutiveNetFailWarn is how many status checks may fail in a row before
// the failure is surfaced as a warning instead of being silently retried.
const consecutiveNetFailWarn = 3

// terminalSessionRetention is how long a settled session stays readable so
// the UI can fetch the final snapshot before the session is evicted.
const terminalSessionRetention = 2 * time.Minute

// EventProducer publishes terminal payment events.
type EventProducer interface {
	SendPaymentEvent(event models.PaymentEvent) error
}

// PaymentSession bundles everything owned by one payment attempt: the
// engine holding the intent, the timers, the gateway window, and the
// persisted record backing it.
type PaymentSession struct {
	intent      *models.PaymentIntent
	engine      *ReconciliationEngine
	scheduler   *PollingScheduler
	window      WindowHandle
	redirectURL string
	paymentID   *uuid.UUID

	netFailures atomic.Int32
}

// OnlinePaymentStart is returned to the frontend when an online intent opens.
type OnlinePaymentStart struct {
	Snapshot          models.IntentSnapshot `json:"snapshot"`
	RedirectURL       string                `json:"redirect_url"`
	ExternalReference string                `json:"external_reference"`
}

// PaymentSessionManager creates and owns payment sessions. It is the only
// writer of intent state (through the engines it creates) and the single
// place where terminal outcomes are persisted and published.
type PaymentSessionManager struct {
	provider    providers.PaymentProvider
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
	guard       *PendingPaymentGuard
	submitter   *ManualProofSubmitter
	windows     *RedirectWindowController
	locker      InvoiceLocker
	producer    EventProducer
	logger      *zap.Logger

	pollInterval time.Duration
	budget       time.Duration
	retention    time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*PaymentSession
	byRef    map[string]uuid.UUID
}

func NewPaymentSessionManager(
	provider providers.PaymentProvider,
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentRepository,
	guard *PendingPaymentGuard,
	submitter *ManualProofSubmitter,
	windows *RedirectWindowController,
	locker InvoiceLocker,
	producer EventProducer,
	logger *zap.Logger,
	pollInterval, budget time.Duration,
) *PaymentSessionManager {
	return &PaymentSessionManager{
		provider:     provider,
		invoiceRepo:  invoiceRepo,
		paymentRepo:  paymentRepo,
		guard:        guard,
		submitter:    submitter,
		windows:      windows,
		locker:       locker,
		producer:     producer,
		logger:       logger,
		pollInterval: pollInterval,
		budget:       budget,
		retention:    terminalSessionRetention,
		sessions:     make(map[uuid.UUID]*PaymentSession),
		byRef:        make(map[string]uuid.UUID),
	}
}

// StartOnline creates an online intent for the invoice's outstanding amount,
// opens a gateway redirect and starts the polling and countdown timers.
func (m *PaymentSessionManager) StartOnline(ctx context.Context, invoiceID, tenantID uuid.UUID) (*OnlinePaymentStart, error) {
	invoice, err := m.invoiceRepo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "invoice not found"}
	}
	if invoice.Status != models.InvoiceStatusUnpaid || invoice.OutstandingAmount <= 0 {
		return nil, &ServiceError{StatusCode: 409, Message: "invoice has no outstanding amount"}
	}

	sess, err := m.newSession(ctx, invoice, tenantID, models.PaymentMethodOnline)
	if err != nil {
		return nil, err
	}

	info, err := m.provider.CreateRedirect(ctx, sess.intent)
	if err != nil {
		m.releaseLock(sess.intent)
		if errors.Is(err, providers.ErrGatewayRejected) {
			sess.engine.Fail("gateway rejected: " + err.Error())
			m.storeSession(sess)
			return nil, &ServiceError{StatusCode: 422, Message: err.Error()}
		}
		m.logger.Error("Gateway redirect creation failed",
			zap.String("invoice_id", invoiceID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 502, Message: "payment gateway unavailable"}
	}

	sess.engine.SetExternalReference(info.ExternalReference)
	sess.redirectURL = info.RedirectURL

	payment := &models.Payment{
		Payment_ID:        uuid.New(),
		InvoiceID:         invoiceID,
		BookingID:         invoice.BookingID,
		TenantID:          tenantID,
		Amount:            sess.intent.Amount,
		Method:            models.PaymentMethodOnline,
		Status:            models.PaymentStatusPending,
		ExternalReference: &info.ExternalReference,
		RedirectURL:       &info.RedirectURL,
	}
	if err := m.paymentRepo.CreatePayment(context.WithoutCancel(ctx), payment); err != nil {
		m.logger.Error("Failed to persist online payment record",
			zap.String("invoice_id", invoiceID.String()), zap.Error(err))
	} else {
		sess.paymentID = &payment.Payment_ID
	}

	if err := sess.engine.BeginPolling(); err != nil {
		return nil, err
	}

	sess.scheduler = NewPollingScheduler(m.pollInterval, m.budget,
		func(checkCtx context.Context) { m.runStatusCheck(checkCtx, sess) },
		sess.engine.Expire,
		m.logger,
	)
	sess.engine.SetCountdown(sess.scheduler.SecondsRemaining)
	sess.scheduler.Start(context.Background())

	window := m.windows.Open(info.RedirectURL)
	sess.window = window
	m.windows.Watch(window, func() {
		// The tenant closed the gateway page; check immediately instead of
		// waiting for the next tick.
		if _, err := m.CheckNow(context.Background(), sess.intent.ID); err != nil {
			m.logger.Warn("Post-close status check failed", zap.Error(err))
		}
	})

	m.storeSession(sess)

	return &OnlinePaymentStart{
		Snapshot:          sess.engine.Snapshot(),
		RedirectURL:       info.RedirectURL,
		ExternalReference: info.ExternalReference,
	}, nil
}

// StartManual creates a manual intent. The pending-payment guard runs before
// anything else so a duplicate attempt never reaches the gateway or storage.
func (m *PaymentSessionManager) StartManual(ctx context.Context, invoiceID, tenantID uuid.UUID) (*models.IntentSnapshot, error) {
	invoice, err := m.invoiceRepo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "invoice not found"}
	}
	if invoice.Status != models.InvoiceStatusUnpaid || invoice.OutstandingAmount <= 0 {
		return nil, &ServiceError{StatusCode: 409, Message: "invoice has no outstanding amount"}
	}

	if res := m.guard.HasPendingManualPayment(ctx, invoiceID, tenantID); res.Blocked {
		return nil, &ServiceError{StatusCode: 409, Message: ErrPendingPaymentExists.Error()}
	}

	sess, err := m.newSession(ctx, invoice, tenantID, models.PaymentMethodManual)
	if err != nil {
		return nil, err
	}
	m.storeSession(sess)

	snap := sess.engine.Snapshot()
	return &snap, nil
}

// SubmitProof validates and submits the bank-transfer proof for a manual
// intent. Violations are returned as data; only infrastructure and duplicate
// failures surface as errors.
func (m *PaymentSessionManager) SubmitProof(ctx context.Context, intentID uuid.UUID, artifact models.ProofArtifact, details models.BankTransferDetails) ([]Violation, *models.Payment, error) {
	sess, err := m.session(intentID)
	if err != nil {
		return nil, nil, err
	}

	if violations := m.submitter.Validate(artifact, details); len(violations) > 0 {
		return violations, nil, nil
	}

	payment, err := m.submitter.Submit(ctx, sess.intent, artifact, details)
	if err != nil {
		if errors.Is(err, ErrPendingPaymentExists) {
			return nil, nil, &ServiceError{StatusCode: 409, Message: err.Error()}
		}
		if errors.Is(err, ErrSubmissionRejected) {
			sess.engine.Fail("submission rejected")
			return nil, nil, &ServiceError{StatusCode: 422, Message: err.Error()}
		}
		return nil, nil, err
	}

	sess.paymentID = &payment.Payment_ID
	if err := sess.engine.ReportManualSubmissionAccepted(); err != nil {
		return nil, nil, err
	}
	return nil, payment, nil
}

// CheckNow performs an immediate reconciliation pass for the intent: a
// gateway status check for online sessions, a record refresh for manual ones.
func (m *PaymentSessionManager) CheckNow(ctx context.Context, intentID uuid.UUID) (*models.IntentSnapshot, error) {
	sess, err := m.session(intentID)
	if err != nil {
		return nil, err
	}

	switch sess.intent.Method {
	case models.PaymentMethodOnline:
		m.runStatusCheck(ctx, sess)
	case models.PaymentMethodManual:
		if sess.paymentID != nil {
			record, err := m.paymentRepo.GetPaymentByID(ctx, *sess.paymentID)
			if err != nil {
				m.logger.Warn("Payment record refresh failed",
					zap.String("intent_id", intentID.String()), zap.Error(err))
			} else {
				sess.engine.RefreshFromRecord(record)
			}
		}
	}

	snap := sess.engine.Snapshot()
	return &snap, nil
}

// Cancel tears the session down: both timers stopped, the window closed,
// the invoice lock released, the intent failed.
func (m *PaymentSessionManager) Cancel(ctx context.Context, intentID uuid.UUID) error {
	sess, err := m.session(intentID)
	if err != nil {
		return err
	}
	sess.engine.Fail("cancelled by tenant")
	m.teardown(sess)
	return nil
}

// Snapshot returns the current observable state of the intent.
func (m *PaymentSessionManager) Snapshot(intentID uuid.UUID) (*models.IntentSnapshot, error) {
	sess, err := m.session(intentID)
	if err != nil {
		return nil, err
	}
	snap := sess.engine.Snapshot()
	return &snap, nil
}

// ReportWindowClosed is the frontend callback for the popup going away.
func (m *PaymentSessionManager) ReportWindowClosed(intentID uuid.UUID) error {
	sess, err := m.session(intentID)
	if err != nil {
		return err
	}
	if sess.window != nil {
		sess.window.Close()
	}
	return nil
}

// ReportWindowBlocked is the frontend callback for a refused popup. Blocked
// popups are recoverable: the caller gets the raw gateway URL to render as a
// manual link, and the intent keeps polling untouched.
func (m *PaymentSessionManager) ReportWindowBlocked(intentID uuid.UUID) (string, error) {
	sess, err := m.session(intentID)
	if err != nil {
		return "", err
	}
	m.windows.MarkBlocked(sess.window)
	m.logger.Warn("Payment window blocked, offering manual link",
		zap.String("intent_id", intentID.String()))
	return sess.redirectURL, nil
}

// HandleGatewayNotification processes the asynchronous gateway webhook. The
// signal is routed into the live session when one exists; otherwise only the
// persisted record is reconciled, so restarts do not lose webhooks.
func (m *PaymentSessionManager) HandleGatewayNotification(ctx context.Context, externalRef, rawStatus string, rawPayload []byte) error {
	m.mu.RLock()
	intentID, ok := m.byRef[externalRef]
	m.mu.RUnlock()

	if ok {
		sess, err := m.session(intentID)
		if err == nil {
			sess.engine.ReportGatewaySignal(rawStatus)
			return nil
		}
	}

	// No live session: reconcile the record directly.
	record, err := m.paymentRepo.GetPaymentByExternalReference(ctx, externalRef)
	if err != nil {
		return &ServiceError{StatusCode: 404, Message: "unknown transaction reference"}
	}
	if record.IsTerminal() {
		return nil
	}
	updates := recordUpdatesForSignal(rawStatus)
	if updates == nil {
		return nil
	}
	payload := string(rawPayload)
	updates["gateway_payload"] = &payload
	return m.paymentRepo.UpdatePaymentStatus(ctx, record.Payment_ID, updates)
}

// ---- internals ----

func (m *PaymentSessionManager) newSession(ctx context.Context, invoice *models.Invoice, tenantID uuid.UUID, method string) (*PaymentSession, error) {
	intent := &models.PaymentIntent{
		ID:        uuid.New(),
		InvoiceID: invoice.Invoice_ID,
		BookingID: invoice.BookingID,
		TenantID:  tenantID,
		Amount:    invoice.OutstandingAmount,
		Method:    method,
		State:     models.StateCreated,
		CreatedAt: time.Now(),
	}

	if m.locker != nil {
		acquired, err := m.locker.Acquire(ctx, invoice.Invoice_ID, intent.ID, m.budget+time.Minute)
		if err != nil {
			// Lock backend down: fail open, the pending-payment guard still
			// covers the invariant for manual flows.
			m.logger.Warn("Invoice lock unavailable, proceeding without it",
				zap.String("invoice_id", invoice.Invoice_ID.String()), zap.Error(err))
		} else if !acquired {
			return nil, &ServiceError{StatusCode: 409, Message: "a payment for this invoice is already in progress"}
		}
	}

	engine := NewReconciliationEngine(intent, m.logger)
	sess := &PaymentSession{intent: intent, engine: engine}
	engine.SetOnTransition(func(snap models.IntentSnapshot) { m.onTransition(sess, snap) })

	if err := engine.Start(method); err != nil {
		m.releaseLock(intent)
		return nil, err
	}
	return sess, nil
}

// runStatusCheck performs one gateway status check and reports the signal.
// Results arriving after the session reached a terminal state or was torn
// down are discarded by the engine's terminal guard.
func (m *PaymentSessionManager) runStatusCheck(ctx context.Context, sess *PaymentSession) {
	if sess.engine.State().Terminal() {
		return
	}
	ref := sess.intent.ExternalReference
	if ref == "" {
		return
	}

	status, err := m.provider.CheckStatus(ctx, ref)
	if err != nil {
		failures := sess.netFailures.Add(1)
		if errors.Is(err, providers.ErrNotFound) {
			m.logger.Warn("Gateway has no transaction for reference",
				zap.String("external_reference", ref))
			return
		}
		if failures >= consecutiveNetFailWarn {
			m.logger.Warn("Consecutive gateway status checks failing",
				zap.String("external_reference", ref),
				zap.Int32("consecutive_failures", failures),
				zap.Error(err),
			)
		}
		return
	}
	sess.netFailures.Store(0)
	sess.engine.ReportGatewaySignal(status)
}

// onTransition reacts to every engine state change; terminal states are
// persisted, published and torn down exactly once (the engine guarantees a
// single transition into a terminal state).
func (m *PaymentSessionManager) onTransition(sess *PaymentSession, snap models.IntentSnapshot) {
	if !snap.State.Terminal() {
		return
	}

	ctx := context.Background()
	m.persistTerminal(ctx, sess, snap)
	m.publishTerminal(sess, snap)
	m.teardown(sess)

	// The session stays readable for a grace period, then goes away; a
	// long-running service must not accumulate one session per attempt.
	time.AfterFunc(m.retention, func() { m.evict(sess) })
}

func (m *PaymentSessionManager) evict(sess *PaymentSession) {
	m.mu.Lock()
	delete(m.sessions, sess.intent.ID)
	if ref := sess.intent.ExternalReference; ref != "" && m.byRef[ref] == sess.intent.ID {
		delete(m.byRef, ref)
	}
	m.mu.Unlock()
}

func (m *PaymentSessionManager) persistTerminal(ctx context.Context, sess *PaymentSession, snap models.IntentSnapshot) {
	if sess.paymentID == nil {
		return
	}
	now := time.Now()
	var updates map[string]interface{}
	switch snap.State {
	case models.StateSucceeded:
		updates = map[string]interface{}{"status": models.PaymentStatusVerified, "succeeded_at": &now}
	case models.StateFailed:
		updates = map[string]interface{}{"status": models.PaymentStatusFailed, "failed_at": &now}
	case models.StateExpired:
		updates = map[string]interface{}{"status": models.PaymentStatusExpired, "expired_at": &now}
	default:
		return
	}

	if err := m.paymentRepo.UpdatePaymentStatus(ctx, *sess.paymentID, updates); err != nil {
		m.logger.Error("Failed to persist terminal payment status",
			zap.String("payment_id", sess.paymentID.String()),
			zap.String("state", string(snap.State)),
			zap.Error(err),
		)
	}

	if snap.State == models.StateSucceeded {
		if err := m.invoiceRepo.MarkInvoicePaid(ctx, sess.intent.InvoiceID); err != nil {
			m.logger.Error("Failed to mark invoice paid",
				zap.String("invoice_id", sess.intent.InvoiceID.String()),
				zap.Error(err),
			)
		}
	}
}

func (m *PaymentSessionManager) publishTerminal(sess *PaymentSession, snap models.IntentSnapshot) {
	if m.producer == nil {
		return
	}
	event := models.PaymentEvent{
		Type:              "payment_" + string(snap.State),
		InvoiceID:         sess.intent.InvoiceID.String(),
		TenantID:          sess.intent.TenantID.String(),
		Method:            sess.intent.Method,
		Amount:            sess.intent.Amount,
		ExternalReference: sess.intent.ExternalReference,
		Timestamp:         time.Now().UTC(),
	}
	if sess.paymentID != nil {
		event.PaymentID = sess.paymentID.String()
	}
	if err := m.producer.SendPaymentEvent(event); err != nil {
		m.logger.Error("Failed to publish payment event",
			zap.String("event_type", event.Type),
			zap.String("invoice_id", event.InvoiceID),
			zap.Error(err),
		)
	}
}

func (m *PaymentSessionManager) teardown(sess *PaymentSession) {
	if sess.scheduler != nil {
		sess.scheduler.Stop()
	}
	if sess.window != nil {
		m.windows.Close(sess.window)
	}
	m.releaseLock(sess.intent)
}

func (m *PaymentSessionManager) releaseLock(intent *models.PaymentIntent) {
	if m.locker == nil {
		return
	}
	if err := m.locker.Release(context.Background(), intent.InvoiceID, intent.ID); err != nil {
		m.logger.Warn("Invoice lock release failed",
			zap.String("invoice_id", intent.InvoiceID.String()), zap.Error(err))
	}
}

func (m *PaymentSessionManager) storeSession(sess *PaymentSession) {
	m.mu.Lock()
	m.sessions[sess.intent.ID] = sess
	if sess.intent.ExternalReference != "" {
		m.byRef[sess.intent.ExternalReference] = sess.intent.ID
	}
	m.mu.Unlock()
}

func (m *PaymentSessionManager) session(intentID uuid.UUID) (*PaymentSession, error) {
	m.mu.RLock()
	sess, ok := m.sessions[intentID]
	m.mu.RUnlock()
	if !ok {
		return nil, &ServiceError{StatusCode: 404, Message: ErrSessionNotFound.Error()}
	}
	return sess, nil
}

// recordUpdatesForSignal maps a gateway status onto record column updates.
// Pending and unknown statuses produce no update.
func recordUpdatesForSignal(rawStatus string) map[string]interface{} {
	now := time.Now()
	switch classifyStatus(rawStatus) {
	case outcomeSuccess:
		return map[string]interface{}{"status": models.PaymentStatusVerified, "succeeded_at": &now}
	case outcomeFailure:
		return map[string]interface{}{"status": models.PaymentStatusFailed, "failed_at": &now}
	default:
		return nil
	}
}
