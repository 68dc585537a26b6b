package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tenant-payment-service/controllers"
	"tenant-payment-service/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGatewayWebhookRouteGatedByProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pc := &controllers.PaymentController{Logger: zap.NewNop()}

	withWebhook := gin.New()
	routes.RegisterPaymentRoutes(withWebhook, pc, "secret", true)
	w := httptest.NewRecorder()
	withWebhook.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/gateway/notify", nil))
	assert.NotEqual(t, http.StatusNotFound, w.Code)

	withoutWebhook := gin.New()
	routes.RegisterPaymentRoutes(withoutWebhook, pc, "secret", false)
	w = httptest.NewRecorder()
	withoutWebhook.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/gateway/notify", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
