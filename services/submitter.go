package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"tenant-payment-service/models"
	"tenant-payment-service/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Violation is one validation failure. Validation failures are data, not
// errors: Validate always returns normally.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ManualProofSubmitter validates and submits a proof-of-payment artifact
// together with its bank-transfer metadata.
type ManualProofSubmitter struct {
	paymentRepo repository.PaymentRepository
	guard       *PendingPaymentGuard
	proofStore  ProofStore // nil stores proofs inline in the payment row
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewManualProofSubmitter(paymentRepo repository.PaymentRepository, guard *PendingPaymentGuard, proofStore ProofStore, logger *zap.Logger) *ManualProofSubmitter {
	return &ManualProofSubmitter{
		paymentRepo: paymentRepo,
		guard:       guard,
		proofStore:  proofStore,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Validate checks the artifact and form fields, returning every violation
// found. An empty slice means the submission is acceptable.
func (s *ManualProofSubmitter) Validate(artifact models.ProofArtifact, details models.BankTransferDetails) []Violation {
	var violations []Violation

	if artifact.FileName == "" {
		violations = append(violations, Violation{Field: "file_name", Message: "proof file is required"})
	}
	if !models.AllowedProofTypes[artifact.MimeType] {
		violations = append(violations, Violation{
			Field:   "file_type",
			Message: fmt.Sprintf("unsupported file type %q; allowed: jpeg, png, gif, pdf", artifact.MimeType),
		})
	}
	if artifact.SizeBytes > models.MaxProofSizeBytes {
		violations = append(violations, Violation{Field: "size_bytes", Message: "proof file exceeds the 5 MiB limit"})
	}
	if artifact.SizeBytes <= 0 || artifact.ContentBase64 == "" {
		violations = append(violations, Violation{Field: "content_base64", Message: "proof file content is empty"})
	}

	if err := s.validate.Struct(details); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				violations = append(violations, Violation{
					Field:   strings.ToLower(fe.Field()),
					Message: fmt.Sprintf("%s is required", fe.Field()),
				})
			}
		}
	}
	if !details.TransferDate.IsZero() && details.TransferDate.After(endOfToday()) {
		violations = append(violations, Violation{Field: "transfer_date", Message: "transfer date cannot be in the future"})
	}

	return violations
}

// Submit stores the proof and creates the pending payment record. The guard
// runs first so a duplicate submission is blocked before any upload or
// insert happens. The artifact is not retained after a successful submit.
func (s *ManualProofSubmitter) Submit(ctx context.Context, intent *models.PaymentIntent, artifact models.ProofArtifact, details models.BankTransferDetails) (*models.Payment, error) {
	guardRes := s.guard.HasPendingManualPayment(ctx, intent.InvoiceID, intent.TenantID)
	if guardRes.Blocked {
		return nil, ErrPendingPaymentExists
	}

	content, err := base64.StdEncoding.DecodeString(artifact.ContentBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: proof content is not valid base64", ErrSubmissionRejected)
	}

	transferDate := details.TransferDate
	payment := &models.Payment{
		Payment_ID:        uuid.New(),
		InvoiceID:         intent.InvoiceID,
		BookingID:         intent.BookingID,
		TenantID:          intent.TenantID,
		Amount:            intent.Amount,
		Method:            models.PaymentMethodManual,
		Status:            models.PaymentStatusPending,
		BankName:          details.BankName,
		AccountNumber:     details.AccountNumber,
		AccountHolderName: details.AccountHolderName,
		TransferDate:      &transferDate,
		ProofFileName:     artifact.FileName,
		ProofFileType:     artifact.MimeType,
	}

	if s.proofStore != nil {
		key := fmt.Sprintf("proofs/%s/%s_%s", intent.InvoiceID, payment.Payment_ID, artifact.FileName)
		if err := s.proofStore.Put(ctx, key, content, artifact.MimeType); err != nil {
			s.logger.Error("Proof upload failed", zap.String("invoice_id", intent.InvoiceID.String()), zap.Error(err))
			return nil, fmt.Errorf("proof upload failed: %w", err)
		}
		payment.ProofObjectKey = &key
	} else {
		payment.ProofContent = &artifact.ContentBase64
	}

	if err := s.paymentRepo.CreatePayment(ctx, payment); err != nil {
		s.logger.Warn("Manual payment insert rejected",
			zap.String("invoice_id", intent.InvoiceID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
	}

	s.logger.Info("Manual payment submitted",
		zap.String("payment_id", payment.Payment_ID.String()),
		zap.String("invoice_id", intent.InvoiceID.String()),
		zap.String("bank", details.BankName),
	)
	return payment, nil
}

func endOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
}
