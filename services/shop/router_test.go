package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/auth"
	"github.com/matheusmosca/planet-shop/pkg/config"
	"github.com/matheusmosca/planet-shop/services/addresses"
	"github.com/matheusmosca/planet-shop/services/carts"
	"github.com/matheusmosca/planet-shop/services/inventory"
	"github.com/matheusmosca/planet-shop/services/orders"
	"github.com/matheusmosca/planet-shop/services/payments"
	"github.com/matheusmosca/planet-shop/services/reconciliation"
	"github.com/matheusmosca/planet-shop/services/users"
)

// newTestApp monta handlers sem use cases. Só serve para rotas que
// respondem antes de chegar neles.
func newTestApp() *app {
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := zap.NewNop()
	return &app{
		identity:       auth.NewIdentity(nil),
		users:          users.NewUserHandler(nil, tracer, logger),
		addresses:      addresses.NewAddressHandler(nil, logger),
		carts:          carts.NewCartHandler(nil, tracer, logger),
		orders:         orders.NewOrderHandler(nil, tracer, logger),
		payments:       payments.NewPaymentHandler(nil, tracer, logger),
		inventory:      inventory.NewInventoryHandler(nil, tracer, logger),
		reconciliation: reconciliation.NewReconciliationHandler(nil, reconciliation.NewMemoryQueue(1), false, "sk_test", tracer, logger),
		logger:         logger,
	}
}

func TestRouter_Health(t *testing.T) {
	r := newRouter(&config.Config{ServiceName: "shop-test"}, newTestApp(), zap.NewNop())
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRouter_UserRoutesRequireIdentity(t *testing.T) {
	r := newRouter(&config.Config{ServiceName: "shop-test"}, newTestApp(), zap.NewNop())

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/checkout"},
		{http.MethodGet, "/api/orders/ord-1"},
		{http.MethodPost, "/api/payments/initiate"},
		{http.MethodGet, "/api/payments/verify?reference=PSK-1"},
		{http.MethodGet, "/api/payments/pay-1"},
		{http.MethodPost, "/api/payments/pay-1/refund"},
		{http.MethodDelete, "/api/users/me"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_WebhookIsPublicButSigned(t *testing.T) {
	r := newRouter(&config.Config{ServiceName: "shop-test"}, newTestApp(), zap.NewNop())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(`{"event":"charge.success"}`))

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_signature")
}
