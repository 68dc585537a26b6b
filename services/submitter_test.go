package services

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"tenant-payment-service/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validDetails() models.BankTransferDetails {
	return models.BankTransferDetails{
		BankName:          "BCA",
		AccountNumber:     "1234567890",
		AccountHolderName: "Budi Santoso",
		TransferDate:      time.Now().AddDate(0, 0, -1),
	}
}

func pngArtifact(sizeBytes int64) models.ProofArtifact {
	return models.ProofArtifact{
		FileName:      "transfer.png",
		MimeType:      "image/png",
		SizeBytes:     sizeBytes,
		ContentBase64: base64.StdEncoding.EncodeToString([]byte("proof-bytes")),
	}
}

func newSubmitter(paymentRepo *fakePaymentRepo, invoiceRepo *fakeInvoiceRepo, store ProofStore) *ManualProofSubmitter {
	guard := NewPendingPaymentGuard(invoiceRepo, paymentRepo, zap.NewNop())
	return NewManualProofSubmitter(paymentRepo, guard, store, zap.NewNop())
}

func TestValidate_AcceptsFourMiBPNG(t *testing.T) {
	s := newSubmitter(newFakePaymentRepo(), newFakeInvoiceRepo(), nil)

	violations := s.Validate(pngArtifact(4*1024*1024), validDetails())
	assert.Empty(t, violations)
}

func TestValidate_RejectsSixMiBFile(t *testing.T) {
	s := newSubmitter(newFakePaymentRepo(), newFakeInvoiceRepo(), nil)

	violations := s.Validate(pngArtifact(6*1024*1024), validDetails())
	require.Len(t, violations, 1)
	assert.Equal(t, "size_bytes", violations[0].Field)
}

func TestValidate_RejectsUnsupportedTypeAndMissingFields(t *testing.T) {
	s := newSubmitter(newFakePaymentRepo(), newFakeInvoiceRepo(), nil)

	artifact := pngArtifact(1024)
	artifact.MimeType = "application/zip"
	details := models.BankTransferDetails{TransferDate: time.Now()}

	violations := s.Validate(artifact, details)

	fields := make(map[string]bool)
	for _, v := range violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["file_type"])
	assert.True(t, fields["bankname"])
	assert.True(t, fields["accountnumber"])
	assert.True(t, fields["accountholdername"])
}

func TestValidate_RejectsFutureTransferDate(t *testing.T) {
	s := newSubmitter(newFakePaymentRepo(), newFakeInvoiceRepo(), nil)

	details := validDetails()
	details.TransferDate = time.Now().AddDate(0, 0, 2)

	violations := s.Validate(pngArtifact(1024), details)
	require.Len(t, violations, 1)
	assert.Equal(t, "transfer_date", violations[0].Field)
}

func TestSubmit_CreatesPendingRecord(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	store := &fakeProofStore{}
	s := newSubmitter(paymentRepo, newFakeInvoiceRepo(), store)

	intent := newTestIntent(models.PaymentMethodManual)
	payment, err := s.Submit(context.Background(), intent, pngArtifact(1024), validDetails())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, models.PaymentMethodManual, payment.Method)
	assert.Equal(t, intent.Amount, payment.Amount)
	require.NotNil(t, payment.ProofObjectKey)
	assert.Len(t, store.keys, 1)
	assert.Nil(t, payment.ProofContent, "proof goes to object storage, not the row")
}

func TestSubmit_InlinesProofWithoutStore(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	s := newSubmitter(paymentRepo, newFakeInvoiceRepo(), nil)

	payment, err := s.Submit(context.Background(), newTestIntent(models.PaymentMethodManual), pngArtifact(1024), validDetails())
	require.NoError(t, err)
	require.NotNil(t, payment.ProofContent)
	assert.Nil(t, payment.ProofObjectKey)
}

func TestSubmit_BlockedBeforeAnyStorageCall(t *testing.T) {
	invoiceID, tenantID := uuid.New(), uuid.New()
	paymentRepo := newFakePaymentRepo()
	invoiceRepo := newFakeInvoiceRepo(&models.Invoice{
		Invoice_ID: invoiceID,
		TenantID:   tenantID,
		Payments:   []models.Payment{*pendingManualPayment(invoiceID, tenantID)},
	})
	store := &fakeProofStore{}
	s := newSubmitter(paymentRepo, invoiceRepo, store)

	intent := newTestIntent(models.PaymentMethodManual)
	intent.InvoiceID = invoiceID
	intent.TenantID = tenantID

	_, err := s.Submit(context.Background(), intent, pngArtifact(1024), validDetails())
	assert.ErrorIs(t, err, ErrPendingPaymentExists)
	assert.Empty(t, store.keys, "blocked submissions must not upload")
	assert.Equal(t, 0, paymentRepo.creates, "blocked submissions must not insert")
}

func TestSubmit_RejectsInvalidBase64(t *testing.T) {
	s := newSubmitter(newFakePaymentRepo(), newFakeInvoiceRepo(), nil)

	artifact := pngArtifact(1024)
	artifact.ContentBase64 = "not-%%-base64"

	_, err := s.Submit(context.Background(), newTestIntent(models.PaymentMethodManual), artifact, validDetails())
	assert.ErrorIs(t, err, ErrSubmissionRejected)
}
