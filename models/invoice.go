package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvoiceStatusUnpaid = "unpaid"
	InvoiceStatusPaid   = "paid"
	InvoiceStatusVoid   = "void"
)

// Invoice is the billing document a payment attempt settles. The payment
// service reads invoices to know the outstanding amount and the payments
// already attached to them; invoice CRUD lives in the billing service.
type Invoice struct {
	Invoice_ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"invoice_id"`
	BookingID         uuid.UUID `gorm:"type:uuid;index" json:"booking_id"`
	TenantID          uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	TotalAmount       int64     `gorm:"not null" json:"total_amount"`
	OutstandingAmount int64     `gorm:"not null" json:"outstanding_amount"`
	Status            string    `gorm:"type:varchar(20);not null" json:"status"`
	DueDate           time.Time `json:"due_date"`

	Payments []Payment `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
