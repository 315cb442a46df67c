package carts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/matheusmosca/planet-shop/services/inventory"
)

// Cart representa o carrinho do usuário (um por usuário)
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}

// CartItem é uma linha do carrinho com os dados atuais da variante
type CartItem struct {
	ID            string          `json:"id"`
	VariantID     string          `json:"-"`
	SKU           string          `json:"variant_sku"`
	ProductName   string          `json:"product_name"`
	VariantName   string          `json:"variant_name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	StockQuantity int             `json:"-"`
	IsActive      bool            `json:"-"`
}

// Subtotal é calculado com o preço atual da variante
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Label é o nome usado nas mensagens de estoque
func (i CartItem) Label() string {
	return i.ProductName + " - " + i.VariantName
}

// TotalPrice é sempre derivado; nunca é persistido
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// IsEmpty indica se o carrinho não tem itens
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Lines converte os itens em linhas do inventário
func (c *Cart) Lines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, inventory.Line{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Label:     item.Label(),
		})
	}
	return lines
}

// CartResponse é a representação JSON do carrinho
type CartResponse struct {
	ID         string             `json:"id"`
	Items      []CartItemResponse `json:"items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
}

// CartItemResponse inclui o subtotal derivado
type CartItemResponse struct {
	CartItem
	Subtotal decimal.Decimal `json:"subtotal"`
}

// NewCartResponse monta a resposta com os totais derivados
func NewCartResponse(cart *Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, CartItemResponse{CartItem: item, Subtotal: item.Subtotal()})
	}
	return CartResponse{
		ID:         cart.ID,
		Items:      items,
		TotalPrice: cart.TotalPrice(),
	}
}
