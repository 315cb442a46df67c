package inventory

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

func newTestRouter(repo *MockRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewInventoryHandler(NewLedger(repo, zap.NewNop()), noop.NewTracerProvider().Tracer("test"), zap.NewNop())

	r := gin.New()
	r.PUT("/api/admin/variants/:sku/stock", handler.SetStock)
	return r
}

func TestInventoryHandler_SetStock(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	repo.On("GetVariantBySKU", mock.Anything, "SKU-v-a").Return(variant("v-a", 1), nil)
	repo.On("SetStock", mock.Anything, "v-a", 12).Return(nil)
	r := newTestRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/admin/variants/SKU-v-a/stock", strings.NewReader(`{"stock_quantity":12}`))
	req.Header.Set("Content-Type", "application/json")

	// Act
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sku":"SKU-v-a","stock_quantity":12}`, w.Body.String())
}

func TestInventoryHandler_SetStock_MissingBody(t *testing.T) {
	r := newTestRouter(new(MockRepository))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/admin/variants/SKU-v-a/stock", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}
