package services

import (
	"context"

	"tenant-payment-service/models"
	"tenant-payment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GuardResult is the outcome of a pending-payment lookup.
type GuardResult struct {
	Blocked  bool             `json:"blocked"`
	Existing []models.Payment `json:"existing"`
}

// PendingPaymentGuard decides whether a new manual submission is allowed
// for an invoice/tenant pair. It prefers the invoice's embedded payment
// list and falls back to the tenant-wide list. When both lookups fail it
// fails open: letting the tenant retry beats silently blocking them.
type PendingPaymentGuard struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
	logger      *zap.Logger
}

func NewPendingPaymentGuard(invoiceRepo repository.InvoiceRepository, paymentRepo repository.PaymentRepository, logger *zap.Logger) *PendingPaymentGuard {
	return &PendingPaymentGuard{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		logger:      logger,
	}
}

// HasPendingManualPayment reports whether a pending manual payment already
// covers the invoice.
func (g *PendingPaymentGuard) HasPendingManualPayment(ctx context.Context, invoiceID, tenantID uuid.UUID) GuardResult {
	invoice, invErr := g.invoiceRepo.GetInvoiceWithPayments(ctx, invoiceID)
	if invErr == nil {
		return g.filterPending(invoice.Payments, invoiceID)
	}

	payments, payErr := g.paymentRepo.ListPaymentsByTenant(ctx, tenantID)
	if payErr == nil {
		return g.filterPending(payments, invoiceID)
	}

	g.logger.Warn("Pending-payment lookup failed on both sources, failing open",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.NamedError("invoice_err", invErr),
		zap.NamedError("payments_err", payErr),
	)
	return GuardResult{Blocked: false}
}

func (g *PendingPaymentGuard) filterPending(payments []models.Payment, invoiceID uuid.UUID) GuardResult {
	var existing []models.Payment
	for _, p := range payments {
		if p.InvoiceID == invoiceID && p.Method == models.PaymentMethodManual && p.Status == models.PaymentStatusPending {
			existing = append(existing, p)
		}
	}
	return GuardResult{Blocked: len(existing) > 0, Existing: existing}
}
