package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/planet-shop/pkg/database"
)

var ErrOrderNotFound = fmt.Errorf("order %w", database.ErrNotFound)

// querier é a parte comum de pgxpool.Pool e pgx.Tx usada nas leituras
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository define a interface para operações de banco de dados de pedidos
type Repository interface {
	CreateOrder(ctx context.Context, tx database.Tx, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrderForUpdate(ctx context.Context, tx database.Tx, orderID string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, tx database.Tx, orderID string, status OrderStatus) error
}

// OrderRepository implementa Repository usando PostgreSQL
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository cria uma nova instância de OrderRepository
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		db: db,
	}
}

// CreateOrder insere o pedido e os itens na transação do checkout
func (r *OrderRepository) CreateOrder(ctx context.Context, tx database.Tx, order *Order) error {
	pgTx := database.PgxTx(tx)

	_, err := pgTx.Exec(ctx, `
		INSERT INTO orders (id, user_id, shipping_address_snapshot, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, order.ID, order.UserID, order.ShippingAddressSnapshot, order.TotalPrice.String(),
		string(order.Status), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (id, order_id, variant_id, product_snapshot, variant_snapshot, price_at_purchase, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, item.VariantID, item.ProductSnapshot, item.VariantSnapshot,
			item.PriceAtPurchase.String(), item.Quantity)
	}
	if err := pgTx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create order items: %w", err)
	}
	return nil
}

// GetOrder busca o pedido com os itens (sem lock)
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return getOrder(ctx, r.db, orderID, "")
}

// GetOrderForUpdate obtém o pedido com lock pessimista (FOR UPDATE).
// É sempre o primeiro lock de qualquer fluxo de reconciliação.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, tx database.Tx, orderID string) (*Order, error) {
	order, err := getOrder(ctx, database.PgxTx(tx), orderID, "FOR UPDATE")
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, fmt.Errorf("failed to get order with lock: %w", err)
	}
	return order, err
}

func getOrder(ctx context.Context, q querier, orderID string, lockClause string) (*Order, error) {
	var order Order
	var total, status string
	err := q.QueryRow(ctx, `
		SELECT id, user_id, shipping_address_snapshot, total_price::text, status, created_at, updated_at
		FROM orders
		WHERE id = $1
		`+lockClause, orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.ShippingAddressSnapshot,
		&total,
		&status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	order.Status = OrderStatus(status)
	if order.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, variant_id, product_snapshot, variant_snapshot, price_at_purchase::text, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY variant_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		var price string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.ProductSnapshot,
			&item.VariantSnapshot, &price, &item.Quantity); err != nil {
			return nil, err
		}
		if item.PriceAtPurchase, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return &order, rows.Err()
}

// UpdateOrderStatus atualiza o status de um pedido
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, tx database.Tx, orderID string, status OrderStatus) error {
	pgTx := database.PgxTx(tx)

	tag, err := pgTx.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, string(status), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
