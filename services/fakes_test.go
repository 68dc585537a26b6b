package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"tenant-payment-service/models"
	"tenant-payment-service/providers"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ---- in-memory repositories ----

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
	failList bool
	creates  int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*models.Payment)}
}

func (r *fakePaymentRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.payments[payment.Payment_ID] = payment
	return nil
}

func (r *fakePaymentRepo) GetPaymentByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[paymentID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) GetPaymentByExternalReference(ctx context.Context, ref string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ExternalReference != nil && *p.ExternalReference == ref {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) ListPaymentsByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList {
		return nil, errors.New("payments lookup failed")
	}
	var out []models.Payment
	for _, p := range r.payments {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(string); ok {
		p.Status = status
	}
	return nil
}

func (r *fakePaymentRepo) get(paymentID uuid.UUID) *models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[paymentID]
}

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*models.Invoice
	failGet  bool
	paid     []uuid.UUID
}

func newFakeInvoiceRepo(invoices ...*models.Invoice) *fakeInvoiceRepo {
	r := &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*models.Invoice)}
	for _, inv := range invoices {
		r.invoices[inv.Invoice_ID] = inv
	}
	return r
}

func (r *fakeInvoiceRepo) GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	return r.GetInvoiceWithPayments(ctx, invoiceID)
}

func (r *fakeInvoiceRepo) GetInvoiceWithPayments(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet {
		return nil, errors.New("invoice lookup failed")
	}
	if inv, ok := r.invoices[invoiceID]; ok {
		copied := *inv
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeInvoiceRepo) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, invoiceID)
	return nil
}

// ---- gateway provider ----

type fakeProvider struct {
	mu          sync.Mutex
	status      string
	statusErr   error
	redirectErr error
	checks      int
}

func (p *fakeProvider) CreateRedirect(ctx context.Context, intent *models.PaymentIntent) (providers.RedirectInfo, error) {
	if p.redirectErr != nil {
		return providers.RedirectInfo{}, p.redirectErr
	}
	return providers.RedirectInfo{
		RedirectURL:       "https://gateway.example/pay/" + intent.ID.String(),
		ExternalReference: "ORDER-" + intent.ID.String()[:8],
	}, nil
}

func (p *fakeProvider) CheckStatus(ctx context.Context, externalReference string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	if p.statusErr != nil {
		return "", p.statusErr
	}
	return p.status, nil
}

func (p *fakeProvider) checkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}

// ---- invoice lock ----

type fakeLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]uuid.UUID
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[uuid.UUID]uuid.UUID)}
}

func (l *fakeLocker) Acquire(ctx context.Context, invoiceID, intentID uuid.UUID, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[invoiceID]; taken {
		return false, nil
	}
	l.held[invoiceID] = intentID
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, invoiceID, intentID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.held[invoiceID]; ok && holder == intentID {
		delete(l.held, invoiceID)
	}
	return nil
}

// ---- event producer ----

type fakeProducer struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *fakeProducer) SendPaymentEvent(event models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakeProducer) all() []models.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PaymentEvent(nil), p.events...)
}

// ---- proof store ----

type fakeProofStore struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *fakeProofStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, key)
	return nil
}
