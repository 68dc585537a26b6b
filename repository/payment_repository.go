package repository

import (
	"context"
	"time"

	"tenant-payment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	GetPaymentByExternalReference(ctx context.Context, ref string) (*models.Payment, error)
	ListPaymentsByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, updates map[string]interface{}) error
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) GetPaymentByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) GetPaymentByExternalReference(ctx context.Context, ref string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("external_reference = ?", ref).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) ListPaymentsByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *gormPaymentRepo) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("payment_id = ?", paymentID).Updates(updates).Error
}
