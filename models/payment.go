package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment statuses as persisted by the portal backend. These are the
// authoritative, eventually-consistent record statuses; the in-memory
// intent states in intent.go are derived from them plus gateway signals.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusFailed   = "failed"
	PaymentStatusExpired  = "expired"
)

const (
	PaymentMethodOnline = "online"
	PaymentMethodManual = "manual"
)

// Payment is the server-owned payment record for one payment attempt.
type Payment struct {
	Payment_ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"payment_id"`
	InvoiceID         uuid.UUID `gorm:"type:uuid;index;not null" json:"invoice_id"`
	BookingID         uuid.UUID `gorm:"type:uuid;index" json:"booking_id"`
	TenantID          uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Amount            int64     `gorm:"not null" json:"amount"` // whole currency units (IDR)
	Method            string    `gorm:"type:varchar(10);not null" json:"method"`
	Status            string    `gorm:"type:varchar(20);not null" json:"status"`
	ExternalReference *string   `gorm:"uniqueIndex" json:"external_reference,omitempty"`
	RedirectURL       *string   `gorm:"type:varchar(1024)" json:"redirect_url,omitempty"`

	// Manual bank-transfer metadata. Only set for method == manual.
	BankName          string     `gorm:"type:varchar(100)" json:"bank_name,omitempty"`
	AccountNumber     string     `gorm:"type:varchar(50)" json:"account_number,omitempty"`
	AccountHolderName string     `gorm:"type:varchar(100)" json:"account_holder_name,omitempty"`
	TransferDate      *time.Time `json:"transfer_date,omitempty"`

	// Proof artifact location: an S3 object key when object storage is
	// configured, otherwise the base64 content stored inline.
	ProofFileName  string  `gorm:"type:varchar(255)" json:"proof_file_name,omitempty"`
	ProofFileType  string  `gorm:"type:varchar(50)" json:"proof_file_type,omitempty"`
	ProofObjectKey *string `gorm:"type:varchar(512)" json:"proof_object_key,omitempty"`
	ProofContent   *string `gorm:"type:text" json:"-"`

	GatewayPayload *string    `gorm:"type:jsonb" json:"-"` // last raw gateway notification, for audit
	SucceededAt    *time.Time `json:"succeeded_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`
	ExpiredAt      *time.Time `json:"expired_at,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsTerminal reports whether the record status admits no further updates.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusVerified || p.Status == PaymentStatusFailed || p.Status == PaymentStatusExpired
}

// Allowed proof artifact MIME types.
var AllowedProofTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/pdf": true,
}

// MaxProofSizeBytes is the proof artifact size ceiling (5 MiB).
const MaxProofSizeBytes = 5 * 1024 * 1024

// ProofArtifact is the client-supplied evidence of a bank transfer.
// It is validated, uploaded (or inlined), and then discarded.
type ProofArtifact struct {
	FileName      string `json:"file_name"`
	MimeType      string `json:"file_type"`
	SizeBytes     int64  `json:"size_bytes"`
	ContentBase64 string `json:"content_base64"`
}

// BankTransferDetails are the form fields accompanying a manual proof.
type BankTransferDetails struct {
	BankName          string    `json:"bank_name" validate:"required"`
	AccountNumber     string    `json:"account_number" validate:"required"`
	AccountHolderName string    `json:"account_holder_name" validate:"required"`
	TransferDate      time.Time `json:"transfer_date" validate:"required"`
}
