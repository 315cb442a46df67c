package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/pkg/database"
	"github.com/matheusmosca/planet-shop/services/addresses"
	"github.com/matheusmosca/planet-shop/services/carts"
	"github.com/matheusmosca/planet-shop/services/inventory"
)

// CartReader lê o carrinho do usuário
type CartReader interface {
	GetCart(ctx context.Context, userID string) (*carts.Cart, error)
}

// AddressFinder resolve o endereço padrão
type AddressFinder interface {
	GetDefaultAddress(ctx context.Context, userID string) (*addresses.Address, error)
}

// StockChecker faz a checagem consultiva de estoque
type StockChecker interface {
	ReserveCheck(ctx context.Context, variantID string, quantity int) (bool, int, error)
}

// OrderUseCase contém a lógica de negócio de pedidos
type OrderUseCase struct {
	repository Repository
	carts      CartReader
	addresses  AddressFinder
	stock      StockChecker
	txs        database.Beginner
	logger     *zap.Logger
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	repository Repository,
	carts CartReader,
	addresses AddressFinder,
	stock StockChecker,
	txs database.Beginner,
	logger *zap.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		repository: repository,
		carts:      carts,
		addresses:  addresses,
		stock:      stock,
		txs:        txs,
		logger:     logger,
	}
}

// Checkout cria um pedido pendente a partir do carrinho. O estoque não é
// tocado e o carrinho não é esvaziado; isso acontece na confirmação.
func (uc *OrderUseCase) Checkout(ctx context.Context, userID string) (*Order, error) {
	uc.logger.Info("➡️ [CHECKOUT] starting", zap.String("user_id", userID))

	// 1. Carrinho não pode estar vazio
	cart, err := uc.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperrors.Validation("empty_cart", "Cart is empty")
	}

	// 2. Endereço padrão obrigatório
	address, err := uc.addresses.GetDefaultAddress(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.Validation("no_default_address", "No default address found")
		}
		return nil, err
	}

	// 3. Checagem consultiva de estoque, com todas as faltas listadas
	var unavailable, shortages []string
	for _, item := range cart.Items {
		if !item.IsActive {
			unavailable = append(unavailable, fmt.Sprintf("%s is no longer available.", item.Label()))
			continue
		}
		ok, available, err := uc.stock.ReserveCheck(ctx, item.VariantID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			shortages = append(shortages, inventory.Shortage{
				VariantID: item.VariantID,
				Label:     item.Label(),
				Available: available,
				Requested: item.Quantity,
			}.String())
		}
	}
	if len(unavailable) > 0 {
		return nil, apperrors.Validation("variant_unavailable", "Some items are no longer available", unavailable...)
	}
	if len(shortages) > 0 {
		uc.logger.Info("❌ CHECKOUT FAILED: insufficient stock", zap.String("user_id", userID), zap.Strings("details", shortages))
		return nil, apperrors.InsufficientStock(shortages...)
	}

	// 4. Foto dos itens com o preço atual
	items := make([]OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, OrderItem{
			VariantID:       item.VariantID,
			ProductSnapshot: item.ProductName,
			VariantSnapshot: item.VariantName,
			PriceAtPurchase: item.Price,
			Quantity:        item.Quantity,
		})
	}
	order := NewOrder(userID, address.String(), items)

	// 5. Pedido e itens na mesma transação
	tx, err := uc.txs.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := uc.repository.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("erro ao comitar checkout: %w", err)
	}

	uc.logger.Info("✅ [CHECKOUT] order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total_price", order.TotalPrice.StringFixed(2)))
	return order, nil
}

// GetOrder retorna o pedido apenas para o dono
func (uc *OrderUseCase) GetOrder(ctx context.Context, userID string, orderID string) (*Order, error) {
	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, apperrors.NotFound("order_not_found", "Order not found")
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order_not_found", "Order not found")
	}
	return order, nil
}
