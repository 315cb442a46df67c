package carts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/planet-shop/pkg/database"
)

var (
	ErrCartNotFound = fmt.Errorf("cart %w", database.ErrNotFound)
	ErrItemNotFound = fmt.Errorf("cart item %w", database.ErrNotFound)
)

// CartRepository define a interface para operações de banco de dados do carrinho
type CartRepository interface {
	CreateCart(ctx context.Context, tx database.Tx, userID string) (*Cart, error)
	GetCartByUserID(ctx context.Context, userID string) (*Cart, error)
	UpsertItem(ctx context.Context, cartID string, variantID string, quantity int) error
	ReduceItem(ctx context.Context, cartID string, variantID string, quantity int) (removed bool, err error)
	RemoveItem(ctx context.Context, cartID string, variantID string) error
	ClearCart(ctx context.Context, tx database.Tx, cartID string) error
	ClearByUser(ctx context.Context, tx database.Tx, userID string) error
}

// PostgresCartRepository implementa CartRepository usando PostgreSQL
type PostgresCartRepository struct {
	db *pgxpool.Pool
}

// NewCartRepository cria uma nova instância de PostgresCartRepository
func NewCartRepository(db *pgxpool.Pool) CartRepository {
	return &PostgresCartRepository{db: db}
}

// CreateCart cria o carrinho na transação do cadastro
func (r *PostgresCartRepository) CreateCart(ctx context.Context, tx database.Tx, userID string) (*Cart, error) {
	pgTx := database.PgxTx(tx)

	cart := &Cart{ID: uuid.New().String(), UserID: userID}
	err := pgTx.QueryRow(ctx, `
		INSERT INTO carts (id, user_id)
		VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, cart.ID, userID).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

// GetCartByUserID busca o carrinho com os itens e os dados atuais das variantes
func (r *PostgresCartRepository) GetCartByUserID(ctx context.Context, userID string) (*Cart, error) {
	var cart Cart
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT ci.id, ci.variant_id, v.sku, p.name, v.variant_name, v.price::text,
		       ci.quantity, v.stock_quantity, v.is_active AND p.is_active
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id = $1
		ORDER BY v.sku
	`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item CartItem
		var price string
		if err := rows.Scan(
			&item.ID,
			&item.VariantID,
			&item.SKU,
			&item.ProductName,
			&item.VariantName,
			&price,
			&item.Quantity,
			&item.StockQuantity,
			&item.IsActive,
		); err != nil {
			return nil, err
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price for variant %s: %w", item.VariantID, err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpsertItem adiciona a variante ao carrinho somando a quantidade se já existir
func (r *PostgresCartRepository) UpsertItem(ctx context.Context, cartID string, variantID string, quantity int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, uuid.New().String(), cartID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return r.touch(ctx, cartID)
}

// ReduceItem diminui a quantidade; remove o item quando a quantidade chega a zero
func (r *PostgresCartRepository) ReduceItem(ctx context.Context, cartID string, variantID string, quantity int) (bool, error) {
	var removed bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx, `
			SELECT quantity FROM cart_items
			WHERE cart_id = $1 AND variant_id = $2
			FOR UPDATE
		`, cartID, variantID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return err
		}

		if current <= quantity {
			removed = true
			_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2`, cartID, variantID)
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE cart_items SET quantity = quantity - $3
			WHERE cart_id = $1 AND variant_id = $2
		`, cartID, variantID, quantity)
		return err
	})
	if err != nil {
		return false, err
	}
	return removed, r.touch(ctx, cartID)
}

// RemoveItem remove o item do carrinho
func (r *PostgresCartRepository) RemoveItem(ctx context.Context, cartID string, variantID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2
	`, cartID, variantID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return r.touch(ctx, cartID)
}

// ClearCart remove todos os itens dentro da transação do chamador
func (r *PostgresCartRepository) ClearCart(ctx context.Context, tx database.Tx, cartID string) error {
	pgTx := database.PgxTx(tx)

	if _, err := pgTx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// ClearByUser esvazia o carrinho do usuário dentro da transação do chamador
func (r *PostgresCartRepository) ClearByUser(ctx context.Context, tx database.Tx, userID string) error {
	pgTx := database.PgxTx(tx)

	_, err := pgTx.Exec(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (r *PostgresCartRepository) touch(ctx context.Context, cartID string) error {
	_, err := r.db.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)
	return err
}
