package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/planet-shop/services/inventory"
)

// OrderStatus representa os possíveis status de um pedido
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Order representa um pedido no sistema
type Order struct {
	ID                      string          `json:"id"`
	UserID                  string          `json:"-"`
	ShippingAddressSnapshot string          `json:"shipping_address_snapshot"`
	TotalPrice              decimal.Decimal `json:"total_price"`
	Status                  OrderStatus     `json:"status"`
	Items                   []OrderItem     `json:"items"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// OrderItem é a foto congelada de uma linha do carrinho no checkout
type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"-"`
	VariantID       string          `json:"-"`
	ProductSnapshot string          `json:"product_snapshot"`
	VariantSnapshot string          `json:"variant_snapshot"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Quantity        int             `json:"quantity"`
}

// Subtotal da linha
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewOrder cria um pedido pendente. O total é calculado uma única vez a
// partir dos itens e nunca é recalculado.
func NewOrder(userID string, shippingAddress string, items []OrderItem) *Order {
	now := time.Now()
	order := &Order{
		ID:                      uuid.New().String(),
		UserID:                  userID,
		ShippingAddressSnapshot: shippingAddress,
		Status:                  OrderStatusPending,
		TotalPrice:              decimal.Zero,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	for _, item := range items {
		item.ID = uuid.New().String()
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
		order.TotalPrice = order.TotalPrice.Add(item.Subtotal())
	}
	return order
}

// IsTerminal indica que o motor de reconciliação não aceita mais transições
func (o *Order) IsTerminal() bool {
	return o.Status != OrderStatusPending
}

// Lines converte os itens em linhas do inventário
func (o *Order) Lines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, inventory.Line{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Label:     item.ProductSnapshot + " - " + item.VariantSnapshot,
		})
	}
	return lines
}
