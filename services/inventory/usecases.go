package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/pkg/database"
)

// Ledger contém a lógica de negócio do estoque. As operações que mutam o
// estoque recebem a transação do chamador; o Ledger nunca faz commit.
type Ledger struct {
	repository InventoryRepository
	logger     *zap.Logger
}

// NewLedger cria uma nova instância de Ledger
func NewLedger(repository InventoryRepository, logger *zap.Logger) *Ledger {
	return &Ledger{
		repository: repository,
		logger:     logger,
	}
}

// ReserveCheck é uma leitura consultiva, sem lock. O resultado pode estar
// desatualizado quando o Deduct rodar.
func (l *Ledger) ReserveCheck(ctx context.Context, variantID string, quantity int) (bool, int, error) {
	variant, err := l.repository.GetVariant(ctx, variantID)
	if err != nil {
		return false, 0, err
	}
	return variant.StockQuantity >= quantity, variant.StockQuantity, nil
}

// LockVariants bloqueia as variantes em ordem crescente de id
func (l *Ledger) LockVariants(ctx context.Context, tx database.Tx, variantIDs []string) (map[string]*Variant, error) {
	ids := append([]string(nil), variantIDs...)
	sort.Strings(ids)

	locked := make(map[string]*Variant, len(ids))
	for _, id := range ids {
		if _, ok := locked[id]; ok {
			continue
		}
		variant, err := l.repository.GetVariantForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lock variant %s: %w", id, err)
		}
		locked[id] = variant
	}
	return locked, nil
}

// Deduct baixa o estoque de todas as linhas do pedido, ou de nenhuma.
// Retorna *InsufficientStockError quando alguma linha não cabe no estoque
// bloqueado.
func (l *Ledger) Deduct(ctx context.Context, tx database.Tx, orderID string, lines []Line) error {
	l.logger.Info("➡️ [DEDUCT] starting", zap.String("order_id", orderID), zap.Int("lines", len(lines)))

	// 1. Idempotência: o pedido já teve o estoque baixado
	done, err := l.repository.GetMovementsByOrderID(ctx, tx, orderID, MovementTypeDecreased)
	if err != nil {
		return fmt.Errorf("error to check idempotency: %w", err)
	}
	if len(done) > 0 {
		l.logger.Info("ℹ️  [IDEMPOTENCY] deduct already applied", zap.String("order_id", orderID))
		return nil
	}

	// 2. Lock pessimista em ordem crescente de id
	ids := SortedVariantIDs(lines)
	locked, err := l.LockVariants(ctx, tx, ids)
	if err != nil {
		return err
	}

	// 3. Verifica todas as linhas contra os valores bloqueados
	totals := aggregate(lines)
	labels := make(map[string]string, len(lines))
	for _, line := range lines {
		if line.Label != "" {
			labels[line.VariantID] = line.Label
		}
	}

	var shortages []Shortage
	for _, id := range ids {
		variant := locked[id]
		if variant.StockQuantity < totals[id] {
			label := labels[id]
			if label == "" {
				label = variant.Label()
			}
			shortages = append(shortages, Shortage{
				VariantID: id,
				Label:     label,
				Available: variant.StockQuantity,
				Requested: totals[id],
			})
		}
	}
	if len(shortages) > 0 {
		l.logger.Warn("❌ [DEDUCT] insufficient stock",
			zap.String("order_id", orderID),
			zap.Int("shortages", len(shortages)))
		return &InsufficientStockError{Shortages: shortages}
	}

	// 4. Só agora muta o estoque
	for _, id := range ids {
		if err := l.repository.DecreaseStock(ctx, tx, id, orderID, totals[id]); err != nil {
			return err
		}
	}

	l.logger.Info("✅ [DEDUCT] Success", zap.String("order_id", orderID))
	return nil
}

// Restore devolve exatamente as quantidades baixadas para o pedido
func (l *Ledger) Restore(ctx context.Context, tx database.Tx, orderID string) error {
	l.logger.Info("↩️ [RESTORE] starting", zap.String("order_id", orderID))

	restored, err := l.repository.GetMovementsByOrderID(ctx, tx, orderID, MovementTypeIncreased)
	if err != nil {
		return fmt.Errorf("error to check idempotency: %w", err)
	}
	if len(restored) > 0 {
		l.logger.Info("ℹ️  [IDEMPOTENCY] restore already applied", zap.String("order_id", orderID))
		return nil
	}

	decreased, err := l.repository.GetMovementsByOrderID(ctx, tx, orderID, MovementTypeDecreased)
	if err != nil {
		return err
	}
	if len(decreased) == 0 {
		return nil
	}

	lines := make([]Line, 0, len(decreased))
	for _, m := range decreased {
		lines = append(lines, Line{VariantID: m.VariantID, Quantity: m.ChangeQuantity})
	}

	ids := SortedVariantIDs(lines)
	if _, err := l.LockVariants(ctx, tx, ids); err != nil {
		return err
	}

	totals := aggregate(lines)
	for _, id := range ids {
		if err := l.repository.IncreaseStock(ctx, tx, id, orderID, totals[id]); err != nil {
			return err
		}
	}

	l.logger.Info("✅ [RESTORE] Success", zap.String("order_id", orderID))
	return nil
}

// SetStock é a edição administrativa do estoque
func (l *Ledger) SetStock(ctx context.Context, sku string, quantity int) (*Variant, error) {
	if quantity < 0 {
		return nil, apperrors.Validation("invalid_stock", "Stock quantity cannot be negative")
	}

	variant, err := l.repository.GetVariantBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperrors.NotFound("variant_not_found", "Variant not found")
		}
		return nil, err
	}

	if err := l.repository.SetStock(ctx, variant.ID, quantity); err != nil {
		return nil, err
	}
	variant.StockQuantity = quantity

	l.logger.Info("📦 [STOCK] updated", zap.String("sku", sku), zap.Int("stock_quantity", quantity))
	return variant, nil
}

// GetVariantBySKU busca a variante ativa ou não pelo SKU
func (l *Ledger) GetVariantBySKU(ctx context.Context, sku string) (*Variant, error) {
	variant, err := l.repository.GetVariantBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperrors.NotFound("variant_not_found", "Variant not found")
		}
		return nil, err
	}
	return variant, nil
}
