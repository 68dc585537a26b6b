package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type gatewayNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	TransactionStatus string `json:"transaction_status"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key"`
}

// GatewayNotification receives the asynchronous gateway webhook. The
// endpoint is unauthenticated; authenticity comes from the signature over
// order id, status code, gross amount and the server key.
func (pc *PaymentController) GatewayNotification(c *gin.Context) {
	if pc.ServerKey == "" {
		// Without a server key every signature check would be against an
		// empty secret. Refuse instead of pretending to verify.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway notifications not configured"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var notif gatewayNotification
	if err := json.Unmarshal(payload, &notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification"})
		return
	}

	if !pc.validSignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, notif.SignatureKey) {
		pc.Logger.Warn("Gateway notification signature mismatch",
			zap.String("order_id", notif.OrderID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	pc.Logger.Info("Processing gateway notification",
		zap.String("order_id", notif.OrderID),
		zap.String("transaction_status", notif.TransactionStatus),
		zap.String("payment_type", notif.PaymentType),
	)

	if err := pc.Sessions.HandleGatewayNotification(c.Request.Context(), notif.OrderID, notif.TransactionStatus, payload); err != nil {
		pc.respondServiceError(c, err, "Gateway notification rejected")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
