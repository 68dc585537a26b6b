package controllers

import (
	"context"
	"net/http"
	"time"

	"tenant-payment-service/middleware"
	"tenant-payment-service/models"
	"tenant-payment-service/repository"
	"tenant-payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentSessions is the slice of the session manager the HTTP layer needs.
type PaymentSessions interface {
	StartOnline(ctx context.Context, invoiceID, tenantID uuid.UUID) (*services.OnlinePaymentStart, error)
	StartManual(ctx context.Context, invoiceID, tenantID uuid.UUID) (*models.IntentSnapshot, error)
	SubmitProof(ctx context.Context, intentID uuid.UUID, artifact models.ProofArtifact, details models.BankTransferDetails) ([]services.Violation, *models.Payment, error)
	CheckNow(ctx context.Context, intentID uuid.UUID) (*models.IntentSnapshot, error)
	Cancel(ctx context.Context, intentID uuid.UUID) error
	Snapshot(intentID uuid.UUID) (*models.IntentSnapshot, error)
	ReportWindowClosed(intentID uuid.UUID) error
	ReportWindowBlocked(intentID uuid.UUID) (string, error)
	HandleGatewayNotification(ctx context.Context, externalRef, rawStatus string, rawPayload []byte) error
}

type PaymentController struct {
	Sessions    PaymentSessions
	PaymentRepo repository.PaymentRepository
	InvoiceRepo repository.InvoiceRepository
	ServerKey   string // gateway server key for webhook signature checks
	Logger      *zap.Logger
}

// InitiateOnlinePayment starts an online intent and returns the redirect URL.
func (pc *PaymentController) InitiateOnlinePayment(c *gin.Context) {
	var req struct {
		InvoiceID string `json:"invoice_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID, ok := pc.tenantID(c)
	if !ok {
		return
	}

	start, err := pc.Sessions.StartOnline(c.Request.Context(), uuid.MustParse(req.InvoiceID), tenantID)
	if err != nil {
		pc.respondServiceError(c, err, "Failed to start online payment")
		return
	}
	c.JSON(http.StatusCreated, start)
}

// InitiateManualPayment starts a manual intent (bank transfer path).
func (pc *PaymentController) InitiateManualPayment(c *gin.Context) {
	var req struct {
		InvoiceID string `json:"invoice_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID, ok := pc.tenantID(c)
	if !ok {
		return
	}

	snap, err := pc.Sessions.StartManual(c.Request.Context(), uuid.MustParse(req.InvoiceID), tenantID)
	if err != nil {
		pc.respondServiceError(c, err, "Failed to start manual payment")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"snapshot": snap})
}

type manualProofRequest struct {
	IntentID          string `json:"intent_id" binding:"required,uuid"`
	BankName          string `json:"bank_name"`
	AccountNumber     string `json:"account_number"`
	AccountHolderName string `json:"account_holder_name"`
	TransferDate      string `json:"transfer_date"` // YYYY-MM-DD
	FileName          string `json:"file_name"`
	FileType          string `json:"file_type"`
	SizeBytes         int64  `json:"size_bytes"`
	ContentBase64     string `json:"content_base64"`
}

// SubmitManualProof validates and submits a proof-of-payment artifact.
// Validation failures come back as a 400 with the violation list.
func (pc *PaymentController) SubmitManualProof(c *gin.Context) {
	var req manualProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	details := models.BankTransferDetails{
		BankName:          req.BankName,
		AccountNumber:     req.AccountNumber,
		AccountHolderName: req.AccountHolderName,
	}
	if req.TransferDate != "" {
		parsed, err := time.Parse("2006-01-02", req.TransferDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transfer_date must be YYYY-MM-DD"})
			return
		}
		details.TransferDate = parsed
	}
	artifact := models.ProofArtifact{
		FileName:      req.FileName,
		MimeType:      req.FileType,
		SizeBytes:     req.SizeBytes,
		ContentBase64: req.ContentBase64,
	}

	violations, payment, err := pc.Sessions.SubmitProof(c.Request.Context(), uuid.MustParse(req.IntentID), artifact, details)
	if err != nil {
		pc.respondServiceError(c, err, "Manual proof submission failed")
		return
	}
	if len(violations) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"violations": violations})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment_id": payment.Payment_ID,
		"status":     payment.Status,
	})
}

// GetPaymentStatus returns the observable snapshot for an intent.
func (pc *PaymentController) GetPaymentStatus(c *gin.Context) {
	intentID, ok := pc.intentParam(c)
	if !ok {
		return
	}
	snap, err := pc.Sessions.Snapshot(intentID)
	if err != nil {
		pc.respondServiceError(c, err, "Snapshot lookup failed")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CheckPaymentNow forces an immediate reconciliation pass.
func (pc *PaymentController) CheckPaymentNow(c *gin.Context) {
	intentID, ok := pc.intentParam(c)
	if !ok {
		return
	}
	snap, err := pc.Sessions.CheckNow(c.Request.Context(), intentID)
	if err != nil {
		pc.respondServiceError(c, err, "Manual status check failed")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CancelPayment tears the session down.
func (pc *PaymentController) CancelPayment(c *gin.Context) {
	intentID, ok := pc.intentParam(c)
	if !ok {
		return
	}
	if err := pc.Sessions.Cancel(c.Request.Context(), intentID); err != nil {
		pc.respondServiceError(c, err, "Cancel failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// WindowClosed is the frontend callback for the gateway popup going away.
func (pc *PaymentController) WindowClosed(c *gin.Context) {
	intentID, ok := pc.intentParam(c)
	if !ok {
		return
	}
	if err := pc.Sessions.ReportWindowClosed(intentID); err != nil {
		pc.respondServiceError(c, err, "Window-closed callback failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}

// WindowBlocked is the frontend callback for a refused popup. Responds with
// the raw gateway URL so the UI can offer a manual link and a retry.
func (pc *PaymentController) WindowBlocked(c *gin.Context) {
	intentID, ok := pc.intentParam(c)
	if !ok {
		return
	}
	url, err := pc.Sessions.ReportWindowBlocked(intentID)
	if err != nil {
		pc.respondServiceError(c, err, "Window-blocked callback failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect_url": url})
}

// ListTenantPayments returns the tenant's payment history. Tenants may only
// read their own list.
func (pc *PaymentController) ListTenantPayments(c *gin.Context) {
	requested, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}
	tenantID, ok := pc.tenantID(c)
	if !ok {
		return
	}
	if requested != tenantID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	payments, err := pc.PaymentRepo.ListPaymentsByTenant(c.Request.Context(), tenantID)
	if err != nil {
		pc.respondError(c, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// GetInvoice returns an invoice with its payments.
func (pc *PaymentController) GetInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	tenantID, ok := pc.tenantID(c)
	if !ok {
		return
	}

	invoice, err := pc.InvoiceRepo.GetInvoiceWithPayments(c.Request.Context(), invoiceID)
	if err != nil {
		pc.respondError(c, http.StatusNotFound, "Invoice not found", err)
		return
	}
	if invoice.TenantID != tenantID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (pc *PaymentController) tenantID(c *gin.Context) (uuid.UUID, bool) {
	raw := middleware.GetTenantID(c)
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid tenant identity"})
		return uuid.Nil, false
	}
	return tenantID, true
}

func (pc *PaymentController) intentParam(c *gin.Context) (uuid.UUID, bool) {
	intentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid intent id"})
		return uuid.Nil, false
	}
	return intentID, true
}
