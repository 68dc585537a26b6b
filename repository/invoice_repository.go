package repository

import (
	"context"

	"tenant-payment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceRepository interface {
	GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	// GetInvoiceWithPayments preloads the payments attached to the invoice.
	GetInvoiceWithPayments(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) error
}

type gormInvoiceRepo struct {
	db *gorm.DB
}

func NewGormInvoiceRepo(db *gorm.DB) InvoiceRepository {
	return &gormInvoiceRepo{db: db}
}

func (r *gormInvoiceRepo) GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *gormInvoiceRepo) GetInvoiceWithPayments(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Preload("Payments").Where("invoice_id = ?", invoiceID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *gormInvoiceRepo) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("invoice_id = ?", invoiceID).
		Updates(map[string]interface{}{"status": models.InvoiceStatusPaid, "outstanding_amount": 0}).Error
}
