package carts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/services/inventory"
)

// VariantFinder resolve variantes pelo SKU
type VariantFinder interface {
	GetVariantBySKU(ctx context.Context, sku string) (*inventory.Variant, error)
}

// CartUseCase contém a lógica de negócio do carrinho
type CartUseCase struct {
	repository CartRepository
	variants   VariantFinder
	logger     *zap.Logger
}

// NewCartUseCase cria uma nova instância de CartUseCase
func NewCartUseCase(repository CartRepository, variants VariantFinder, logger *zap.Logger) *CartUseCase {
	return &CartUseCase{
		repository: repository,
		variants:   variants,
		logger:     logger,
	}
}

// GetCart retorna o carrinho do usuário com os preços atuais
func (uc *CartUseCase) GetCart(ctx context.Context, userID string) (*Cart, error) {
	cart, err := uc.repository.GetCartByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, apperrors.NotFound("cart_not_found", "Cart not found")
		}
		return nil, err
	}
	return cart, nil
}

// AddItem adiciona a variante ao carrinho, somando com a quantidade existente
func (uc *CartUseCase) AddItem(ctx context.Context, userID string, sku string, quantity int) error {
	if quantity < 1 {
		return apperrors.Validation("invalid_quantity", "Quantity must be at least 1")
	}

	cart, err := uc.GetCart(ctx, userID)
	if err != nil {
		return err
	}

	variant, err := uc.variants.GetVariantBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if !variant.Available() {
		return apperrors.Validation("variant_unavailable", "This product is no longer available.")
	}
	if variant.StockQuantity < quantity {
		return apperrors.Validation("insufficient_stock",
			fmt.Sprintf("Only %d units available in stock.", variant.StockQuantity))
	}

	if err := uc.repository.UpsertItem(ctx, cart.ID, variant.ID, quantity); err != nil {
		return err
	}

	uc.logger.Info("🛒 [CART] item added",
		zap.String("user_id", userID),
		zap.String("sku", sku),
		zap.Int("quantity", quantity))
	return nil
}

// ReduceItem diminui a quantidade e informa se o item foi removido
func (uc *CartUseCase) ReduceItem(ctx context.Context, userID string, sku string, quantity int) (bool, error) {
	if quantity < 1 {
		return false, apperrors.Validation("invalid_quantity", "Quantity must be at least 1")
	}

	cartID, variantID, err := uc.resolve(ctx, userID, sku)
	if err != nil {
		return false, err
	}

	removed, err := uc.repository.ReduceItem(ctx, cartID, variantID, quantity)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return false, apperrors.NotFound("cart_item_not_found", "Item is not in the cart")
		}
		return false, err
	}
	return removed, nil
}

// RemoveItem remove a variante do carrinho
func (uc *CartUseCase) RemoveItem(ctx context.Context, userID string, sku string) error {
	cartID, variantID, err := uc.resolve(ctx, userID, sku)
	if err != nil {
		return err
	}

	if err := uc.repository.RemoveItem(ctx, cartID, variantID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return apperrors.NotFound("cart_item_not_found", "Item is not in the cart")
		}
		return err
	}
	return nil
}

func (uc *CartUseCase) resolve(ctx context.Context, userID, sku string) (string, string, error) {
	cart, err := uc.GetCart(ctx, userID)
	if err != nil {
		return "", "", err
	}
	variant, err := uc.variants.GetVariantBySKU(ctx, sku)
	if err != nil {
		return "", "", err
	}
	return cart.ID, variant.ID, nil
}
