package reconciliation

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const webhookSecret = "sk_test_secret"

func sign(body string) string {
	mac := hmac.New(sha512.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestRouter(h *ReconciliationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/payments/webhook", h.Webhook)
	r.GET("/api/payments/verify", func(c *gin.Context) { h.Verify(c, "user-1") })
	r.POST("/api/payments/:id/refund", func(c *gin.Context) { h.Refund(c, "user-1") })
	return r
}

func newHandlerFixture(t *testing.T, async bool) (*engineFixture, *MemoryQueue, *gin.Engine) {
	t.Helper()
	f := newEngineFixture(t)
	queue := NewMemoryQueue(10)
	h := NewReconciliationHandler(f.engine, queue, async, webhookSecret,
		noop.NewTracerProvider().Tracer("test"), zap.NewNop())
	return f, queue, newTestRouter(h)
}

func TestWebhook_EnqueuesSignedChargeEvents(t *testing.T) {
	// Arrange
	_, queue, router := newHandlerFixture(t, false)
	body := `{"event":"charge.success","data":{"reference":"PSK-1","amount":2500}}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set(HeaderSignature, sign(body))
	w := httptest.NewRecorder()

	// Act
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	delivery, err := queue.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PSK-1", delivery.Job.TxRef)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	_, queue, router := newHandlerFixture(t, false)
	body := `{"event":"charge.success","data":{"reference":"PSK-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set(HeaderSignature, sign(`{"event":"charge.success","data":{"reference":"PSK-2"}}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_signature")
	assert.Empty(t, queue.jobs)
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	_, queue, router := newHandlerFixture(t, false)
	body := `{"event":"transfer.success","data":{"reference":"TRF-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set(HeaderSignature, sign(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	assert.Empty(t, queue.jobs)
}

func TestVerify_RequiresReference(t *testing.T) {
	_, _, router := newHandlerFixture(t, false)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/payments/verify", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerify_AsyncEnqueues(t *testing.T) {
	_, queue, router := newHandlerFixture(t, true)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/payments/verify?reference=PSK-9", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	delivery, err := queue.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PSK-9", delivery.Job.TxRef)
}

func TestVerify_SyncReturnsStoredConfirmation(t *testing.T) {
	// Arrange
	f, _, router := newHandlerFixture(t, false)
	_, payment := f.confirmed(t)

	// Act
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/payments/verify?reference="+payment.TxRef, nil))

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, ReasonAlreadyConfirmed, result.Reason)
	assert.Equal(t, "confirmed", result.OrderStatus)
}

func TestRefund_InvalidAmountBody(t *testing.T) {
	_, _, router := newHandlerFixture(t, false)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/pay-1/refund", strings.NewReader(`{"amount":"abc"}`))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_amount")
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, resultStatus(&Result{Reason: ReasonConfirmed}))
	assert.Equal(t, http.StatusOK, resultStatus(&Result{Reason: ReasonAlreadyConfirmed}))
	assert.Equal(t, http.StatusAccepted, resultStatus(&Result{Reason: ReasonUnresolved}))
	assert.Equal(t, http.StatusBadRequest, resultStatus(&Result{Reason: ReasonInsufficientStock}))
	assert.Equal(t, http.StatusBadRequest, resultStatus(&Result{Reason: ReasonAlreadyCancelled}))
}
