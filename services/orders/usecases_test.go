package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/pkg/database"
	"github.com/matheusmosca/planet-shop/services/addresses"
	"github.com/matheusmosca/planet-shop/services/carts"
)

// MockRepository para testes que não precisam de banco real
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateOrder(ctx context.Context, tx database.Tx, order *Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *MockRepository) GetOrderForUpdate(ctx context.Context, tx database.Tx, orderID string) (*Order, error) {
	args := m.Called(ctx, tx, orderID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *MockRepository) UpdateOrderStatus(ctx context.Context, tx database.Tx, orderID string, status OrderStatus) error {
	return m.Called(ctx, tx, orderID, status).Error(0)
}

type MockCartReader struct{ mock.Mock }

func (m *MockCartReader) GetCart(ctx context.Context, userID string) (*carts.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(*carts.Cart)
	return c, args.Error(1)
}

type MockAddressFinder struct{ mock.Mock }

func (m *MockAddressFinder) GetDefaultAddress(ctx context.Context, userID string) (*addresses.Address, error) {
	args := m.Called(ctx, userID)
	a, _ := args.Get(0).(*addresses.Address)
	return a, args.Error(1)
}

type MockStockChecker struct{ mock.Mock }

func (m *MockStockChecker) ReserveCheck(ctx context.Context, variantID string, quantity int) (bool, int, error) {
	args := m.Called(ctx, variantID, quantity)
	return args.Bool(0), args.Int(1), args.Error(2)
}

type fakeTx struct{ committed bool }

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error { return nil }

type fakeBeginner struct{ tx *fakeTx }

func (b fakeBeginner) BeginTx(ctx context.Context) (database.Tx, error) { return b.tx, nil }

type checkoutFixture struct {
	repo      *MockRepository
	carts     *MockCartReader
	addresses *MockAddressFinder
	stock     *MockStockChecker
	tx        *fakeTx
	uc        *OrderUseCase
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		repo:      new(MockRepository),
		carts:     new(MockCartReader),
		addresses: new(MockAddressFinder),
		stock:     new(MockStockChecker),
		tx:        &fakeTx{},
	}
	f.uc = NewOrderUseCase(f.repo, f.carts, f.addresses, f.stock, fakeBeginner{tx: f.tx}, zap.NewNop())
	return f
}

func twoItemCart() *carts.Cart {
	return &carts.Cart{ID: "cart-1", Items: []carts.CartItem{
		{VariantID: "v-1", ProductName: "Tee", VariantName: "Red / M", Price: decimal.RequireFromString("10.00"), Quantity: 2, IsActive: true},
		{VariantID: "v-2", ProductName: "Cap", VariantName: "Black", Price: decimal.RequireFromString("7.50"), Quantity: 1, IsActive: true},
	}}
}

func TestCheckout_CreatesPendingOrderWithSnapshotTotal(t *testing.T) {
	// Arrange
	f := newCheckoutFixture()
	ctx := context.Background()
	f.carts.On("GetCart", ctx, "user-1").Return(twoItemCart(), nil)
	f.addresses.On("GetDefaultAddress", ctx, "user-1").Return(&addresses.Address{
		Label: "Home", Street: "1 Main St", City: "Ikeja", State: "Lagos", Country: "Nigeria",
	}, nil)
	f.stock.On("ReserveCheck", ctx, "v-1", 2).Return(true, 5, nil)
	f.stock.On("ReserveCheck", ctx, "v-2", 1).Return(true, 1, nil)
	f.repo.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*orders.Order")).Return(nil)

	// Act
	order, err := f.uc.Checkout(ctx, "user-1")

	// Assert
	require.NoError(t, err)
	assert.True(t, f.tx.committed)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, "27.50", order.TotalPrice.StringFixed(2))
	assert.Equal(t, "Home - 1 Main St, Ikeja, Lagos, Nigeria", order.ShippingAddressSnapshot)
	assert.Len(t, order.Items, 2)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	f.carts.On("GetCart", mock.Anything, "user-1").Return(&carts.Cart{ID: "cart-1"}, nil)

	_, err := f.uc.Checkout(context.Background(), "user-1")

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "empty_cart", appErr.Code)
	f.repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_NoDefaultAddress(t *testing.T) {
	f := newCheckoutFixture()
	f.carts.On("GetCart", mock.Anything, "user-1").Return(twoItemCart(), nil)
	f.addresses.On("GetDefaultAddress", mock.Anything, "user-1").
		Return(nil, apperrors.NotFound("address_not_found", "No default shipping address"))

	_, err := f.uc.Checkout(context.Background(), "user-1")

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Equal(t, "no_default_address", appErr.Code)
}

func TestCheckout_ItemizesEveryShortage(t *testing.T) {
	// Arrange
	f := newCheckoutFixture()
	f.carts.On("GetCart", mock.Anything, "user-1").Return(twoItemCart(), nil)
	f.addresses.On("GetDefaultAddress", mock.Anything, "user-1").Return(&addresses.Address{Label: "Home"}, nil)
	f.stock.On("ReserveCheck", mock.Anything, "v-1", 2).Return(false, 1, nil)
	f.stock.On("ReserveCheck", mock.Anything, "v-2", 1).Return(false, 0, nil)

	// Act
	_, err := f.uc.Checkout(context.Background(), "user-1")

	// Assert
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindInsufficientStock, appErr.Kind)
	assert.Equal(t, []string{
		"Not enough stock for Tee - Red / M. Available: 1, Requested: 2",
		"Not enough stock for Cap - Black. Available: 0, Requested: 1",
	}, appErr.Details)
	f.repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetOrder_OwnerScoped(t *testing.T) {
	f := newCheckoutFixture()
	f.repo.On("GetOrder", mock.Anything, "order-1").Return(&Order{ID: "order-1", UserID: "owner"}, nil)

	_, err := f.uc.GetOrder(context.Background(), "intruder", "order-1")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	order, err := f.uc.GetOrder(context.Background(), "owner", "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
}
