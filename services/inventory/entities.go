package inventory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product representa o produto dono das variantes
type Product struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Variant representa a unidade de estoque (SKU) de um produto
type Variant struct {
	ID            string          `json:"id" db:"id"`
	ProductID     string          `json:"product_id" db:"product_id"`
	ProductName   string          `json:"product_name" db:"product_name"`
	SKU           string          `json:"sku" db:"sku"`
	Name          string          `json:"variant_name" db:"variant_name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	ProductActive bool            `json:"-" db:"product_is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Available indica se a variante e o produto ainda estão à venda
func (v *Variant) Available() bool {
	return v.IsActive && v.ProductActive
}

// Label é o nome exibido nas mensagens de estoque
func (v *Variant) Label() string {
	if v.ProductName == "" {
		return v.Name
	}
	return v.ProductName + " - " + v.Name
}

// InventoryMovement representa uma movimentação de estoque
type InventoryMovement struct {
	ID             string    `json:"id" db:"id"`
	VariantID      string    `json:"variant_id" db:"variant_id"`
	OrderID        string    `json:"order_id" db:"order_id"`
	ChangeQuantity int       `json:"change_quantity" db:"change_quantity"`
	MovementType   string    `json:"movement_type" db:"movement_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// MovementType representa os tipos de movimentação de estoque
const (
	MovementTypeDecreased = "decreased"
	MovementTypeIncreased = "increased"
)

// Line é a quantidade pedida de uma variante
type Line struct {
	VariantID string
	Quantity  int
	Label     string
}

// Shortage descreve uma linha sem estoque suficiente
type Shortage struct {
	VariantID string `json:"variant_id"`
	Label     string `json:"label"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func (s Shortage) String() string {
	return fmt.Sprintf("Not enough stock for %s. Available: %d, Requested: %d", s.Label, s.Available, s.Requested)
}

// InsufficientStockError lista todas as linhas sem estoque
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	return "insufficient stock: " + strings.Join(e.Details(), "; ")
}

// Details retorna uma mensagem por linha
func (e *InsufficientStockError) Details() []string {
	details := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		details = append(details, s.String())
	}
	return details
}

// SortedVariantIDs retorna os ids distintos em ordem crescente. Toda aquisição
// de locks de variantes segue essa ordem.
func SortedVariantIDs(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.VariantID]; ok {
			continue
		}
		seen[line.VariantID] = struct{}{}
		ids = append(ids, line.VariantID)
	}
	sort.Strings(ids)
	return ids
}

// aggregate soma as quantidades por variante
func aggregate(lines []Line) map[string]int {
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		totals[line.VariantID] += line.Quantity
	}
	return totals
}
