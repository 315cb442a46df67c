package reconciliation

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/matheusmosca/planet-shop/pkg/database"
	"github.com/matheusmosca/planet-shop/services/inventory"
	"github.com/matheusmosca/planet-shop/services/orders"
	"github.com/matheusmosca/planet-shop/services/payments"
)

// store é um banco em memória com rollback por snapshot. Implementa todos
// os colaboradores do Engine.
type store struct {
	orders   map[string]orders.Order
	payments map[string]payments.Payment
	stock    map[string]int
	deducted map[string]map[string]int
	restored map[string]bool
	carts    map[string]int
	emails   map[string]string

	locks     []string
	deductErr error
	beginErr  error
	commits   int
	rollbacks int
	// ctxAware faz BeginTx e as escritas falharem com ctx.Err(), como o pgx
	ctxAware bool
}

type snapshot struct {
	orders   map[string]orders.Order
	payments map[string]payments.Payment
	stock    map[string]int
	deducted map[string]map[string]int
	restored map[string]bool
	carts    map[string]int
}

func newStore() *store {
	return &store{
		orders:   map[string]orders.Order{},
		payments: map[string]payments.Payment{},
		stock:    map[string]int{},
		deducted: map[string]map[string]int{},
		restored: map[string]bool{},
		carts:    map[string]int{},
		emails:   map[string]string{},
	}
}

func (s *store) snapshot() snapshot {
	snap := snapshot{
		orders:   map[string]orders.Order{},
		payments: map[string]payments.Payment{},
		stock:    map[string]int{},
		deducted: map[string]map[string]int{},
		restored: map[string]bool{},
		carts:    map[string]int{},
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.stock {
		snap.stock[k] = v
	}
	for k, v := range s.deducted {
		snap.deducted[k] = v
	}
	for k, v := range s.restored {
		snap.restored[k] = v
	}
	for k, v := range s.carts {
		snap.carts[k] = v
	}
	return snap
}

func (s *store) restore(snap snapshot) {
	s.orders = snap.orders
	s.payments = snap.payments
	s.stock = snap.stock
	s.deducted = snap.deducted
	s.restored = snap.restored
	s.carts = snap.carts
}

type memTx struct {
	s         *store
	snap      snapshot
	committed bool
	done      bool
}

func (t *memTx) Commit() error {
	t.committed = true
	t.done = true
	t.s.commits++
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.rollbacks++
	t.s.restore(t.snap)
	return nil
}

// ctxErr devolve ctx.Err() quando o store respeita cancelamento
func (s *store) ctxErr(ctx context.Context) error {
	if s.ctxAware {
		return ctx.Err()
	}
	return nil
}

func (s *store) BeginTx(ctx context.Context) (database.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	if err := s.ctxErr(ctx); err != nil {
		return nil, err
	}
	return &memTx{s: s, snap: s.snapshot()}, nil
}

// seed cria um pedido pendente com pagamento pendente. Cada linha é
// (variantID, preço, quantidade).
func (s *store) seed(userID string, lines ...orders.OrderItem) (*orders.Order, *payments.Payment) {
	order := orders.NewOrder(userID, "Home - 1 Main St, Lagos, LA, NG", lines)
	s.orders[order.ID] = *order

	payment := payments.NewPayment(order.ID, "card", order.TotalPrice)
	s.payments[payment.ID] = *payment

	s.carts[userID] = len(lines)
	s.emails[userID] = userID + "@example.com"
	return order, payment
}

func item(variantID, price string, quantity int) orders.OrderItem {
	return orders.OrderItem{
		VariantID:       variantID,
		ProductSnapshot: "Product " + variantID,
		VariantSnapshot: "Default",
		PriceAtPurchase: decimal.RequireFromString(price),
		Quantity:        quantity,
	}
}

func (s *store) order(id string) orders.Order { return s.orders[id] }

func (s *store) paymentOf(orderID string) payments.Payment {
	for _, p := range s.payments {
		if p.OrderID == orderID {
			return p
		}
	}
	return payments.Payment{}
}

// OrderStore

func (s *store) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return &o, nil
}

func (s *store) GetOrderForUpdate(ctx context.Context, tx database.Tx, orderID string) (*orders.Order, error) {
	s.locks = append(s.locks, "order")
	return s.GetOrder(ctx, orderID)
}

func (s *store) UpdateOrderStatus(ctx context.Context, tx database.Tx, orderID string, status orders.OrderStatus) error {
	if err := s.ctxErr(ctx); err != nil {
		return err
	}
	o := s.orders[orderID]
	o.Status = status
	s.orders[orderID] = o
	return nil
}

// PaymentStore

func (s *store) GetPayment(ctx context.Context, paymentID string) (*payments.Payment, error) {
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, payments.ErrPaymentNotFound
	}
	return &p, nil
}

func (s *store) GetPaymentByTxRef(ctx context.Context, txRef string) (*payments.Payment, error) {
	for _, p := range s.payments {
		if p.TxRef == txRef {
			return &p, nil
		}
	}
	return nil, payments.ErrPaymentNotFound
}

func (s *store) GetPaymentByOrderIDForUpdate(ctx context.Context, tx database.Tx, orderID string) (*payments.Payment, error) {
	s.locks = append(s.locks, "payment")
	for _, p := range s.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, payments.ErrPaymentNotFound
}

func (s *store) UpdatePaymentStatus(ctx context.Context, tx database.Tx, paymentID string, status payments.PaymentStatus) error {
	if err := s.ctxErr(ctx); err != nil {
		return err
	}
	p := s.payments[paymentID]
	p.Status = status
	s.payments[paymentID] = p
	return nil
}

// StockLedger

func (s *store) LockVariants(ctx context.Context, tx database.Tx, variantIDs []string) (map[string]*inventory.Variant, error) {
	if !sort.StringsAreSorted(variantIDs) {
		return nil, errors.New("variants locked out of order")
	}
	locked := make(map[string]*inventory.Variant, len(variantIDs))
	for _, id := range variantIDs {
		s.locks = append(s.locks, "variant:"+id)
		locked[id] = &inventory.Variant{ID: id, StockQuantity: s.stock[id]}
	}
	return locked, nil
}

func (s *store) Deduct(ctx context.Context, tx database.Tx, orderID string, lines []inventory.Line) error {
	if s.deductErr != nil {
		return s.deductErr
	}
	if _, done := s.deducted[orderID]; done {
		return nil
	}

	ids := inventory.SortedVariantIDs(lines)
	locked, err := s.LockVariants(ctx, tx, ids)
	if err != nil {
		return err
	}

	totals := map[string]int{}
	for _, l := range lines {
		totals[l.VariantID] += l.Quantity
	}

	var shortages []inventory.Shortage
	for _, id := range ids {
		if locked[id].StockQuantity < totals[id] {
			shortages = append(shortages, inventory.Shortage{
				VariantID: id, Label: id, Available: locked[id].StockQuantity, Requested: totals[id],
			})
		}
	}
	if len(shortages) > 0 {
		return &inventory.InsufficientStockError{Shortages: shortages}
	}

	for _, id := range ids {
		s.stock[id] -= totals[id]
	}
	s.deducted[orderID] = totals
	return nil
}

func (s *store) Restore(ctx context.Context, tx database.Tx, orderID string) error {
	if err := s.ctxErr(ctx); err != nil {
		return err
	}
	if s.restored[orderID] {
		return nil
	}
	for id, qty := range s.deducted[orderID] {
		s.stock[id] += qty
	}
	s.restored[orderID] = true
	return nil
}

// CartClearer + EmailFinder

func (s *store) ClearByUser(ctx context.Context, tx database.Tx, userID string) error {
	s.carts[userID] = 0
	return nil
}

func (s *store) GetEmail(ctx context.Context, userID string) (string, error) {
	email, ok := s.emails[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return email, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) Initialize(ctx context.Context, email string, amount decimal.Decimal, txRef string) (*payments.Initialization, error) {
	args := m.Called(ctx, email, amount, txRef)
	r, _ := args.Get(0).(*payments.Initialization)
	return r, args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, txRef string) (*payments.Verification, error) {
	args := m.Called(ctx, txRef)
	r, _ := args.Get(0).(*payments.Verification)
	return r, args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, txRef string, amount decimal.Decimal) (*payments.RefundResult, error) {
	args := m.Called(ctx, txRef, amount)
	r, _ := args.Get(0).(*payments.RefundResult)
	return r, args.Error(1)
}
