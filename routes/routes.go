package routes

import (
	"tenant-payment-service/controllers"
	"tenant-payment-service/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, jwtSecret string, gatewayWebhook bool) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware(jwtSecret))
	payments.POST("/online", pc.InitiateOnlinePayment)
	payments.POST("/manual/start", pc.InitiateManualPayment)
	payments.POST("/manual", pc.SubmitManualProof)
	payments.GET("/intents/:id/status", pc.GetPaymentStatus)
	payments.POST("/intents/:id/check", middleware.CheckNowRateLimit(), pc.CheckPaymentNow)
	payments.POST("/intents/:id/cancel", pc.CancelPayment)
	payments.POST("/intents/:id/window/closed", pc.WindowClosed)
	payments.POST("/intents/:id/window/blocked", pc.WindowBlocked)

	tenants := r.Group("/tenants")
	tenants.Use(middleware.AuthMiddleware(jwtSecret))
	tenants.GET("/:id/payments", pc.ListTenantPayments)

	invoices := r.Group("/invoices")
	invoices.Use(middleware.AuthMiddleware(jwtSecret))
	invoices.GET("/:id", pc.GetInvoice)

	// Gateway webhook (no auth; signature-verified). The signature scheme is
	// gateway-specific, so the route only exists for providers that use it.
	if gatewayWebhook {
		r.POST("/gateway/notify", pc.GatewayNotification)
	}
}
