package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/pkg/database"
	"github.com/matheusmosca/planet-shop/services/orders"
)

// OrderStore é o acesso a pedidos usado pelo fluxo de pagamento
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	GetOrderForUpdate(ctx context.Context, tx database.Tx, orderID string) (*orders.Order, error)
}

// EmailFinder resolve o email do cliente enviado ao provedor
type EmailFinder interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

// PaymentUseCase contém a lógica de iniciação e consulta de pagamentos
type PaymentUseCase struct {
	repository Repository
	orders     OrderStore
	emails     EmailFinder
	gateway    Gateway
	txs        database.Beginner
	logger     *zap.Logger
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(
	repository Repository,
	orderStore OrderStore,
	emails EmailFinder,
	gateway Gateway,
	txs database.Beginner,
	logger *zap.Logger,
) *PaymentUseCase {
	return &PaymentUseCase{
		repository: repository,
		orders:     orderStore,
		emails:     emails,
		gateway:    gateway,
		txs:        txs,
		logger:     logger,
	}
}

// ownedOrder busca o pedido e esconde pedidos de outros usuários
func (uc *PaymentUseCase) ownedOrder(ctx context.Context, userID, orderID string) (*orders.Order, error) {
	order, err := uc.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, apperrors.NotFound("order_not_found", "Order not found")
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order_not_found", "Order not found")
	}
	return order, nil
}

// Initiate registra o pagamento e abre a transação no provedor. O registro é
// comitado antes da chamada ao provedor para que o callback sempre o encontre.
func (uc *PaymentUseCase) Initiate(ctx context.Context, userID string, req InitiateRequest) (*InitiateResult, error) {
	method := req.PaymentMethod
	if method == "" {
		method = "card"
	}

	order, err := uc.ownedOrder(ctx, userID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orders.OrderStatusPending {
		return nil, apperrors.StateConflict("order_not_pending",
			fmt.Sprintf("Cannot initiate payment for order with status '%s'", order.Status))
	}
	if req.Amount != nil && !req.Amount.Equal(order.TotalPrice) {
		return nil, apperrors.Validation("amount_mismatch",
			fmt.Sprintf("Payment amount %s does not match order total %s",
				req.Amount.StringFixed(2), order.TotalPrice.StringFixed(2)))
	}

	email, err := uc.emails.GetEmail(ctx, userID)
	if err != nil {
		return nil, err
	}

	payment, reused, err := uc.preparePayment(ctx, order.ID, method)
	if err != nil {
		return nil, err
	}
	if reused {
		uc.logger.Info("ℹ️  [IDEMPOTENCY] returning pending payment",
			zap.String("order_id", order.ID), zap.String("tx_ref", payment.TxRef))
		return &InitiateResult{
			PaymentID:        payment.ID,
			AuthorizationURL: payment.AuthorizationURL,
			Reference:        payment.TxRef,
		}, nil
	}

	// Chamada ao provedor fora de qualquer transação
	session, err := uc.gateway.Initialize(ctx, email, payment.Amount, payment.TxRef)
	if err != nil {
		if apperrors.Is(err, apperrors.KindValidation) {
			if markErr := uc.repository.MarkFailed(ctx, payment.ID, payment.TxRef); markErr != nil {
				uc.logger.Error("❌ failed to mark rejected payment", zap.String("payment_id", payment.ID), zap.Error(markErr))
			}
		}
		return nil, err
	}

	if err := uc.repository.SetAuthorizationURL(ctx, payment.ID, payment.TxRef, session.AuthorizationURL); err != nil {
		return nil, err
	}

	uc.logger.Info("✅ [INITIATE] payment initialized",
		zap.String("order_id", order.ID),
		zap.String("payment_id", payment.ID),
		zap.String("tx_ref", payment.TxRef))

	return &InitiateResult{
		PaymentID:        payment.ID,
		AuthorizationURL: session.AuthorizationURL,
		Reference:        payment.TxRef,
	}, nil
}

// preparePayment cria, reaproveita ou rotaciona o pagamento do pedido sob
// os locks Order -> Payment.
func (uc *PaymentUseCase) preparePayment(ctx context.Context, orderID, method string) (*Payment, bool, error) {
	tx, err := uc.txs.BeginTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	order, err := uc.orders.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.Status != orders.OrderStatusPending {
		return nil, false, apperrors.StateConflict("order_not_pending",
			fmt.Sprintf("Cannot initiate payment for order with status '%s'", order.Status))
	}

	payment, err := uc.repository.GetPaymentByOrderIDForUpdate(ctx, tx, orderID)
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		payment = NewPayment(order.ID, method, order.TotalPrice)
		if err := uc.repository.CreatePayment(ctx, tx, payment); err != nil {
			return nil, false, err
		}

	case err != nil:
		return nil, false, err

	case payment.Status == PaymentStatusPending && payment.AuthorizationURL != "":
		return payment, true, nil

	case payment.Status == PaymentStatusPending, payment.Status == PaymentStatusFailed:
		payment.TxRef = NewTxRef()
		payment.Method = method
		payment.Status = PaymentStatusPending
		payment.AuthorizationURL = ""
		if err := uc.repository.RotateTxRef(ctx, tx, payment.ID, payment.TxRef, method); err != nil {
			return nil, false, err
		}

	default:
		return nil, false, apperrors.StateConflict("payment_already_processed",
			fmt.Sprintf("Payment is already %s", payment.Status))
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("erro ao comitar pagamento: %w", err)
	}
	return payment, false, nil
}

// GetPaymentStatus retorna o pagamento e o status atual do pedido
func (uc *PaymentUseCase) GetPaymentStatus(ctx context.Context, userID string, paymentID string) (*PaymentDetail, error) {
	payment, err := uc.repository.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, apperrors.NotFound("payment_not_found", "Payment not found")
		}
		return nil, err
	}

	order, err := uc.ownedOrder(ctx, userID, payment.OrderID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.NotFound("payment_not_found", "Payment not found")
		}
		return nil, err
	}

	return &PaymentDetail{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		OrderStatus: string(order.Status),
		Amount:      payment.Amount,
		Status:      payment.Status,
		Method:      payment.Method,
		TxRef:       payment.TxRef,
		CreatedAt:   payment.CreatedAt,
	}, nil
}

// GetOrderPayment retorna o pagamento do pedido, se existir
func (uc *PaymentUseCase) GetOrderPayment(ctx context.Context, userID string, orderID string) (*OrderPayment, error) {
	order, err := uc.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	result := &OrderPayment{OrderID: order.ID, OrderStatus: string(order.Status)}
	payment, err := uc.repository.GetPaymentByOrderID(ctx, orderID)
	switch {
	case errors.Is(err, ErrPaymentNotFound):
	case err != nil:
		return nil, err
	default:
		result.Payment = payment
	}
	return result, nil
}
