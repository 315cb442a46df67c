package inventory

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

// ErrVariantNotFound é retornado quando a variante não existe
var ErrVariantNotFound = fmt.Errorf("variant %w", database.ErrNotFound)

// InventoryRepository define a interface para operações de banco de dados de inventário
type InventoryRepository interface {
	GetVariant(ctx context.Context, variantID string) (*Variant, error)
	GetVariantBySKU(ctx context.Context, sku string) (*Variant, error)
	GetVariantForUpdate(ctx context.Context, tx database.Tx, variantID string) (*Variant, error)
	GetMovementsByOrderID(ctx context.Context, tx database.Tx, orderID string, movementType string) ([]InventoryMovement, error)
	DecreaseStock(ctx context.Context, tx database.Tx, variantID string, orderID string, quantity int) error
	IncreaseStock(ctx context.Context, tx database.Tx, variantID string, orderID string, quantity int) error
	SetStock(ctx context.Context, variantID string, quantity int) error
	UpsertProduct(ctx context.Context, product *Product) error
	UpsertVariant(ctx context.Context, variant *Variant) error
}

// PostgresInventoryRepository implementa InventoryRepository usando PostgreSQL
type PostgresInventoryRepository struct {
	db *pgxpool.Pool
}

// NewInventoryRepository cria uma nova instância de PostgresInventoryRepository
func NewInventoryRepository(db *pgxpool.Pool) InventoryRepository {
	return &PostgresInventoryRepository{
		db: db,
	}
}

const variantColumns = `
	v.id, v.product_id, p.name, v.sku, v.variant_name, v.price::text,
	v.stock_quantity, v.is_active, p.is_active, v.created_at, v.updated_at
`

func scanVariant(row pgx.Row) (*Variant, error) {
	var variant Variant
	var price string
	err := row.Scan(
		&variant.ID,
		&variant.ProductID,
		&variant.ProductName,
		&variant.SKU,
		&variant.Name,
		&price,
		&variant.StockQuantity,
		&variant.IsActive,
		&variant.ProductActive,
		&variant.CreatedAt,
		&variant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}

	variant.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price for variant %s: %w", variant.ID, err)
	}
	return &variant, nil
}

// GetVariant busca a variante sem lock (leitura consultiva)
func (r *PostgresInventoryRepository) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`, variantID)
	return scanVariant(row)
}

// GetVariantBySKU busca a variante pelo SKU
func (r *PostgresInventoryRepository) GetVariantBySKU(ctx context.Context, sku string) (*Variant, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.sku = $1
	`, sku)
	return scanVariant(row)
}

// GetVariantForUpdate obtém a variante com lock pessimista (FOR UPDATE)
func (r *PostgresInventoryRepository) GetVariantForUpdate(ctx context.Context, tx database.Tx, variantID string) (*Variant, error) {
	pgTx := database.PgxTx(tx)

	row := pgTx.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
		FOR UPDATE OF v
	`, variantID)

	variant, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, ErrVariantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get variant with lock: %w", err)
	}
	return variant, nil
}

// GetMovementsByOrderID lista os movimentos de um pedido por tipo
func (r *PostgresInventoryRepository) GetMovementsByOrderID(ctx context.Context, tx database.Tx, orderID string, movementType string) ([]InventoryMovement, error) {
	pgTx := database.PgxTx(tx)

	rows, err := pgTx.Query(ctx, `
		SELECT id, variant_id, order_id, change_quantity, movement_type, created_at
		FROM inventory_movements
		WHERE order_id = $1 AND movement_type = $2
		ORDER BY variant_id
	`, orderID, movementType)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []InventoryMovement
	for rows.Next() {
		var m InventoryMovement
		if err := rows.Scan(&m.ID, &m.VariantID, &m.OrderID, &m.ChangeQuantity, &m.MovementType, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// DecreaseStock diminui o estoque e registra o movimento
func (r *PostgresInventoryRepository) DecreaseStock(ctx context.Context, tx database.Tx, variantID string, orderID string, quantity int) error {
	pgTx := database.PgxTx(tx)

	// 1. Atualiza o estoque da variante (nunca abaixo de zero)
	tag, err := pgTx.Exec(ctx, `
		UPDATE product_variants
		SET stock_quantity = stock_quantity - $1,
		    updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1
	`, quantity, variantID)
	if err != nil {
		return fmt.Errorf("failed to decrease stock: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("failed to decrease stock for variant %s: stock would go negative", variantID)
	}

	// 2. Insere o registro de movimentação
	return insertMovement(ctx, pgTx, variantID, orderID, quantity, MovementTypeDecreased)
}

// IncreaseStock aumenta o estoque e registra o movimento
func (r *PostgresInventoryRepository) IncreaseStock(ctx context.Context, tx database.Tx, variantID string, orderID string, quantity int) error {
	pgTx := database.PgxTx(tx)

	// 1. Atualiza o estoque da variante
	_, err := pgTx.Exec(ctx, `
		UPDATE product_variants
		SET stock_quantity = stock_quantity + $1,
		    updated_at = NOW()
		WHERE id = $2
	`, quantity, variantID)
	if err != nil {
		return fmt.Errorf("failed to increase stock: %w", err)
	}

	// 2. Insere o registro de movimentação
	return insertMovement(ctx, pgTx, variantID, orderID, quantity, MovementTypeIncreased)
}

func insertMovement(ctx context.Context, pgTx pgx.Tx, variantID, orderID string, quantity int, movementType string) error {
	_, err := pgTx.Exec(ctx, `
		INSERT INTO inventory_movements (id, variant_id, order_id, change_quantity, movement_type)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), variantID, orderID, quantity, movementType)
	if err != nil {
		return fmt.Errorf("failed to insert movement record: %w", err)
	}
	return nil
}

// SetStock sobrescreve o estoque (edição administrativa)
func (r *PostgresInventoryRepository) SetStock(ctx context.Context, variantID string, quantity int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE product_variants
		SET stock_quantity = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, quantity, variantID)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// UpsertProduct cria ou atualiza um produto pelo slug
func (r *PostgresInventoryRepository) UpsertProduct(ctx context.Context, product *Product) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO products (id, name, slug, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, is_active = EXCLUDED.is_active
		RETURNING id, created_at
	`, product.ID, product.Name, product.Slug, product.IsActive).Scan(&product.ID, &product.CreatedAt)
}

// UpsertVariant cria ou atualiza uma variante pelo SKU
func (r *PostgresInventoryRepository) UpsertVariant(ctx context.Context, variant *Variant) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO product_variants (id, product_id, sku, variant_name, price, stock_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sku) DO UPDATE
		SET product_id = EXCLUDED.product_id,
		    variant_name = EXCLUDED.variant_name,
		    price = EXCLUDED.price,
		    stock_quantity = EXCLUDED.stock_quantity,
		    is_active = EXCLUDED.is_active,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, variant.ID, variant.ProductID, variant.SKU, variant.Name, variant.Price.String(),
		variant.StockQuantity, variant.IsActive,
	).Scan(&variant.ID, &variant.CreatedAt, &variant.UpdatedAt)
}
