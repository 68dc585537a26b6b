package controllers

import (
	"crypto/sha512"
	"encoding/hex"
	"net/http"

	"tenant-payment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError logs a warning and writes a JSON error response.
func (pc *PaymentController) respondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		pc.Logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

// respondServiceError maps a service-layer error onto an HTTP response,
// preserving the status code of a typed ServiceError.
func (pc *PaymentController) respondServiceError(c *gin.Context, err error, logMsg string) {
	if svcErr, ok := err.(*services.ServiceError); ok {
		pc.Logger.Warn(logMsg, zap.Int("status", svcErr.StatusCode), zap.String("message", svcErr.Message))
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	pc.respondError(c, http.StatusInternalServerError, logMsg, err)
}

// validSignature checks the gateway notification signature:
// sha512(order_id + status_code + gross_amount + server_key).
func (pc *PaymentController) validSignature(orderID, statusCode, grossAmount, signature string) bool {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + pc.ServerKey))
	return hex.EncodeToString(sum[:]) == signature
}
