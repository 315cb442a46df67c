package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/pkg/database"
	"github.com/matheusmosca/planet-shop/services/inventory"
	"github.com/matheusmosca/planet-shop/services/orders"
	"github.com/matheusmosca/planet-shop/services/payments"
)

// OrderStore é o acesso a pedidos usado pelo motor
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	GetOrderForUpdate(ctx context.Context, tx database.Tx, orderID string) (*orders.Order, error)
	UpdateOrderStatus(ctx context.Context, tx database.Tx, orderID string, status orders.OrderStatus) error
}

// PaymentStore é o acesso a pagamentos usado pelo motor
type PaymentStore interface {
	GetPayment(ctx context.Context, paymentID string) (*payments.Payment, error)
	GetPaymentByTxRef(ctx context.Context, txRef string) (*payments.Payment, error)
	GetPaymentByOrderIDForUpdate(ctx context.Context, tx database.Tx, orderID string) (*payments.Payment, error)
	UpdatePaymentStatus(ctx context.Context, tx database.Tx, paymentID string, status payments.PaymentStatus) error
}

// StockLedger é a parte do inventário que muta estoque
type StockLedger interface {
	LockVariants(ctx context.Context, tx database.Tx, variantIDs []string) (map[string]*inventory.Variant, error)
	Deduct(ctx context.Context, tx database.Tx, orderID string, lines []inventory.Line) error
	Restore(ctx context.Context, tx database.Tx, orderID string) error
}

// CartClearer esvazia o carrinho do usuário na transação da confirmação
type CartClearer interface {
	ClearByUser(ctx context.Context, tx database.Tx, userID string) error
}

// EmailFinder resolve o destinatário das notificações
type EmailFinder interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

type noticeFunc func(orderID, email string) Notification

// settleTimeout limita o trabalho local que roda depois da resposta do
// provedor, já desligado do contexto do chamador.
const settleTimeout = 30 * time.Second

// errNotStarted marca falhas anteriores ao lock do pedido. Nada foi
// decidido e o pedido continua pending.
var errNotStarted = errors.New("reconciliation not started")

// transition é o que um passo comitado deixa para depois do commit
type transition struct {
	result *Result
	userID string
	notice noticeFunc
	units  int
}

// Engine reconcilia pedido, pagamento e estoque. Ordem dos locks em todos
// os fluxos: Order -> Payment -> Variants (ids em ordem crescente).
type Engine struct {
	orders   OrderStore
	payments PaymentStore
	ledger   StockLedger
	carts    CartClearer
	emails   EmailFinder
	gateway  payments.Gateway
	notifier Notifier
	txs      database.Beginner
	metrics  *Metrics
	logger   *zap.Logger
}

// Dependencies agrupa os colaboradores do Engine
type Dependencies struct {
	Orders   OrderStore
	Payments PaymentStore
	Ledger   StockLedger
	Carts    CartClearer
	Emails   EmailFinder
	Gateway  payments.Gateway
	Notifier Notifier
	Txs      database.Beginner
	Metrics  *Metrics
}

// NewEngine cria uma nova instância de Engine. Metrics pode ser nil.
func NewEngine(deps Dependencies, logger *zap.Logger) *Engine {
	return &Engine{
		orders:   deps.Orders,
		payments: deps.Payments,
		ledger:   deps.Ledger,
		carts:    deps.Carts,
		emails:   deps.Emails,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		txs:      deps.Txs,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// VerifyAndReconcile consulta o provedor e reconcilia. Pedidos já
// terminais devolvem o resultado gravado sem chamar o provedor.
func (e *Engine) VerifyAndReconcile(ctx context.Context, txRef string) (*Result, error) {
	payment, err := e.payments.GetPaymentByTxRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return nil, apperrors.NotFound("payment_not_found", "Payment record not found")
		}
		return nil, err
	}

	order, err := e.orders.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return storedResult(order, payment), nil
	}

	verification, err := e.gateway.Verify(ctx, txRef)
	if err != nil {
		e.logger.Warn("⚠️ [VERIFY] provider call failed, order stays pending",
			zap.String("order_id", order.ID),
			zap.String("tx_ref", txRef),
			zap.Error(err))
		return nil, err
	}

	if verification.Status == payments.VerificationPending {
		e.metrics.recordReconcile(ctx, ReasonUnresolved, time.Now())
		return &Result{
			OrderID:       order.ID,
			OrderStatus:   string(order.Status),
			PaymentStatus: string(payment.Status),
			Reason:        ReasonUnresolved,
			Message:       "Payment is still being processed by the provider. Try again shortly.",
		}, nil
	}

	return e.Reconcile(ctx, Ref{TxRef: txRef, OrderID: order.ID}, Outcome{
		Success: verification.Status == payments.VerificationSuccess,
		Amount:  verification.Amount,
	})
}

// Reconcile aplica o resultado da verificação ao pedido. Pode ser chamado
// várias vezes para o mesmo evento.
func (e *Engine) Reconcile(ctx context.Context, ref Ref, outcome Outcome) (*Result, error) {
	started := time.Now()

	// O resultado do provedor já existe; desconexão do cliente ou shutdown
	// não podem interromper a transação pela metade.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	orderID, err := e.resolveOrderID(ctx, ref)
	if err != nil {
		return nil, err
	}

	t, err := e.reconcile(ctx, orderID, ref.TxRef, outcome)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, err
		}
		if errors.Is(err, errNotStarted) {
			e.logger.Warn("⚠️ [RECONCILE] could not start, order stays pending",
				zap.String("order_id", orderID),
				zap.String("tx_ref", ref.TxRef),
				zap.Error(err))
			e.metrics.recordReconcile(ctx, ReasonUnresolved, started)
			return &Result{
				OrderID: orderID,
				Reason:  ReasonUnresolved,
				Message: "Reconciliation could not run right now. The order is still pending; try again shortly.",
			}, nil
		}
		e.metrics.recordReconcile(ctx, "error", started)
		return nil, e.cancelAfterFailure(ctx, orderID, err)
	}

	e.metrics.recordReconcile(ctx, t.result.Reason, started)
	if t.units > 0 {
		e.metrics.recordDeducted(ctx, t.units)
	}
	if t.notice != nil {
		e.notify(ctx, t.userID, orderID, t.notice)
	}
	return t.result, nil
}

func (e *Engine) resolveOrderID(ctx context.Context, ref Ref) (string, error) {
	if ref.OrderID != "" {
		return ref.OrderID, nil
	}
	payment, err := e.payments.GetPaymentByTxRef(ctx, ref.TxRef)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return "", apperrors.NotFound("payment_not_found", "Payment record not found")
		}
		return "", err
	}
	return payment.OrderID, nil
}

func (e *Engine) reconcile(ctx context.Context, orderID, txRef string, outcome Outcome) (*transition, error) {
	e.logger.Info("➡️ [RECONCILE] starting",
		zap.String("order_id", orderID),
		zap.String("tx_ref", txRef),
		zap.Bool("success", outcome.Success))

	// 1. Inicia a transação
	tx, err := e.txs.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: erro ao iniciar transação: %w", errNotStarted, err)
	}
	defer tx.Rollback()

	// 2. Lock pessimista: pedido primeiro, depois o pagamento
	order, err := e.orders.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, apperrors.NotFound("order_not_found", "Order not found")
		}
		return nil, fmt.Errorf("%w: erro ao bloquear pedido: %w", errNotStarted, err)
	}

	payment, err := e.payments.GetPaymentByOrderIDForUpdate(ctx, tx, orderID)
	if err != nil && !errors.Is(err, payments.ErrPaymentNotFound) {
		return nil, err
	}

	// 3. Idempotência: o pedido já saiu de pending
	if order.IsTerminal() {
		e.logger.Info("ℹ️  [IDEMPOTENCY] order already reconciled",
			zap.String("order_id", orderID),
			zap.String("status", string(order.Status)))
		return &transition{result: storedResult(order, payment)}, nil
	}

	// Referência rotacionada depois que este evento foi emitido
	if txRef != "" && payment != nil && payment.TxRef != txRef {
		e.logger.Warn("⚠️ [RECONCILE] stale reference ignored",
			zap.String("order_id", orderID),
			zap.String("tx_ref", txRef),
			zap.String("current_tx_ref", payment.TxRef))
		return &transition{result: &Result{
			OrderID:       order.ID,
			OrderStatus:   string(order.Status),
			PaymentStatus: string(payment.Status),
			Reason:        ReasonUnresolved,
			Message:       "Reference is no longer the active payment attempt for this order.",
		}}, nil
	}

	// 4. Conferência de valores
	if details := amountMismatch(order, payment, outcome); len(details) > 0 {
		e.logger.Warn("❌ [RECONCILE] amount mismatch",
			zap.String("order_id", orderID),
			zap.Strings("details", details))
		if err := e.cancel(ctx, tx, order, payment); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("erro ao comitar cancelamento: %w", err)
		}
		return &transition{
			result: cancelledResult(order.ID, ReasonAmountMismatch,
				"Paid amount does not match the order total. Order has been cancelled.", details...),
			userID: order.UserID,
			notice: cancelledNotification,
		}, nil
	}

	// 5. Pagamento recusado: nenhum estoque é tocado
	if !outcome.Success {
		if err := e.cancel(ctx, tx, order, payment); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("erro ao comitar cancelamento: %w", err)
		}
		e.logger.Info("✅ [CANCEL] payment failed, order cancelled", zap.String("order_id", orderID))
		return &transition{
			result: cancelledResult(order.ID, ReasonPaymentFailed,
				"Payment was not successful. Order has been cancelled."),
			userID: order.UserID,
			notice: cancelledNotification,
		}, nil
	}

	// 6. Baixa de estoque com locks ordenados e checagem nos valores bloqueados
	err = e.ledger.Deduct(ctx, tx, order.ID, order.Lines())
	var shortage *inventory.InsufficientStockError
	if errors.As(err, &shortage) {
		if err := e.cancel(ctx, tx, order, payment); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("erro ao comitar cancelamento: %w", err)
		}
		e.logger.Warn("✅ [CANCEL] order cancelled for low stock", zap.String("order_id", orderID))
		return &transition{
			result: cancelledResult(order.ID, ReasonInsufficientStock,
				"Some items ran out of stock before payment was confirmed. Order has been cancelled.",
				shortage.Details()...),
			userID: order.UserID,
			notice: cancelledNotification,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	// 7. Confirma pedido e pagamento e esvazia o carrinho na mesma transação
	if err := e.orders.UpdateOrderStatus(ctx, tx, order.ID, orders.OrderStatusConfirmed); err != nil {
		return nil, err
	}
	if payment != nil {
		if err := e.payments.UpdatePaymentStatus(ctx, tx, payment.ID, payments.PaymentStatusSuccess); err != nil {
			return nil, err
		}
	}
	if err := e.carts.ClearByUser(ctx, tx, order.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("erro ao comitar confirmação: %w", err)
	}

	e.logger.Info("✅ [CONFIRM] Success", zap.String("order_id", orderID))

	units := 0
	for _, line := range order.Lines() {
		units += line.Quantity
	}
	return &transition{
		result: &Result{
			OrderID:       order.ID,
			OrderStatus:   string(orders.OrderStatusConfirmed),
			PaymentStatus: string(payments.PaymentStatusSuccess),
			Reason:        ReasonConfirmed,
			Message:       "Payment verified successfully. Order confirmed and stock reduced.",
		},
		userID: order.UserID,
		notice: confirmedNotification,
		units:  units,
	}, nil
}

// cancel leva o pedido para cancelled e o pagamento (se houver) para failed
func (e *Engine) cancel(ctx context.Context, tx database.Tx, order *orders.Order, payment *payments.Payment) error {
	if err := e.orders.UpdateOrderStatus(ctx, tx, order.ID, orders.OrderStatusCancelled); err != nil {
		return err
	}
	if payment != nil && payment.Status != payments.PaymentStatusFailed {
		if err := e.payments.UpdatePaymentStatus(ctx, tx, payment.ID, payments.PaymentStatusFailed); err != nil {
			return err
		}
	}
	return nil
}

// cancelAfterFailure é o fallback de um erro inesperado: numa transação
// nova, cancela o pedido se ele ainda estiver pending.
func (e *Engine) cancelAfterFailure(ctx context.Context, orderID string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	e.logger.Error("❌ [RECONCILE] unexpected failure, cancelling order",
		zap.String("order_id", orderID),
		zap.Error(cause))

	cancelled, userID, err := e.cancelIfPending(ctx, orderID)
	if err != nil {
		e.logger.Error("❌ [RECONCILE] fallback cancel failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return apperrors.Unexpected(errors.Join(cause, err))
	}
	if cancelled {
		e.notify(ctx, userID, orderID, cancelledNotification)
	}
	return apperrors.Unexpected(cause)
}

func (e *Engine) cancelIfPending(ctx context.Context, orderID string) (bool, string, error) {
	tx, err := e.txs.BeginTx(ctx)
	if err != nil {
		return false, "", err
	}
	defer tx.Rollback()

	order, err := e.orders.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return false, "", err
	}
	if order.IsTerminal() {
		return false, order.UserID, nil
	}

	payment, err := e.payments.GetPaymentByOrderIDForUpdate(ctx, tx, orderID)
	if err != nil && !errors.Is(err, payments.ErrPaymentNotFound) {
		return false, "", err
	}

	if err := e.cancel(ctx, tx, order, payment); err != nil {
		return false, "", err
	}
	if err := tx.Commit(); err != nil {
		return false, "", fmt.Errorf("erro ao comitar cancelamento: %w", err)
	}
	return true, order.UserID, nil
}

// Refund estorna um pagamento confirmado e devolve o estoque do pedido.
// O provedor é chamado com os locks seguros; se ele falhar nada muda.
func (e *Engine) Refund(ctx context.Context, userID, paymentID string, amount *decimal.Decimal) (*RefundResult, error) {
	payment, err := e.payments.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentNotFound) {
			return nil, apperrors.NotFound("payment_not_found", "Payment not found")
		}
		return nil, err
	}
	owner, err := e.orders.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if owner.UserID != userID {
		return nil, apperrors.NotFound("payment_not_found", "Payment not found")
	}

	e.logger.Info("➡️ [REFUND] starting",
		zap.String("payment_id", paymentID),
		zap.String("order_id", payment.OrderID))

	// 1. Inicia a transação
	tx, err := e.txs.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	// 2. Lock pessimista: pedido, depois pagamento
	order, err := e.orders.GetOrderForUpdate(ctx, tx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	payment, err = e.payments.GetPaymentByOrderIDForUpdate(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	// 3. Idempotência e estado
	switch payment.Status {
	case payments.PaymentStatusRefunded:
		e.logger.Info("ℹ️  [IDEMPOTENCY] payment already refunded", zap.String("payment_id", paymentID))
		return &RefundResult{
			PaymentID:      payment.ID,
			OrderID:        order.ID,
			AmountRefunded: payment.Amount,
			Reason:         ReasonAlreadyRefunded,
			Message:        "Payment was already refunded.",
		}, nil
	case payments.PaymentStatusSuccess:
	default:
		return nil, apperrors.StateConflict("payment_not_refundable", "Only successful payments can be refunded")
	}

	refundAmount := payment.Amount
	if amount != nil {
		if !amount.IsPositive() {
			return nil, apperrors.Validation("invalid_amount", "Refund amount must be greater than zero")
		}
		if amount.GreaterThan(payment.Amount) {
			return nil, apperrors.Validation("refund_exceeds_payment", "Refund amount exceeds payment amount")
		}
		refundAmount = *amount
	}

	// 4. Lock das variantes antes do provedor
	if _, err := e.ledger.LockVariants(ctx, tx, inventory.SortedVariantIDs(order.Lines())); err != nil {
		return nil, err
	}

	// A partir do provedor o estorno vai até o fim mesmo que o cliente
	// desconecte; só falha real de banco cai em refundNotRecorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	// 5. Provedor; erro aqui faz rollback sem nenhuma mudança
	refund, err := e.gateway.Refund(ctx, payment.TxRef, refundAmount)
	if err != nil {
		e.metrics.recordRefund(ctx, "provider_error")
		e.logger.Warn("❌ [REFUND] provider refused or unavailable",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, err
	}

	// 6. Estorno, cancelamento e devolução do estoque numa única transação
	if err := e.payments.UpdatePaymentStatus(ctx, tx, payment.ID, payments.PaymentStatusRefunded); err != nil {
		return nil, e.refundNotRecorded(ctx, paymentID, refund, err)
	}
	if err := e.orders.UpdateOrderStatus(ctx, tx, order.ID, orders.OrderStatusCancelled); err != nil {
		return nil, e.refundNotRecorded(ctx, paymentID, refund, err)
	}
	if err := e.ledger.Restore(ctx, tx, order.ID); err != nil {
		return nil, e.refundNotRecorded(ctx, paymentID, refund, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, e.refundNotRecorded(ctx, paymentID, refund, fmt.Errorf("erro ao comitar estorno: %w", err))
	}

	e.metrics.recordRefund(ctx, "refunded")
	e.logger.Info("✅ [REFUND] Success",
		zap.String("payment_id", paymentID),
		zap.String("order_id", order.ID),
		zap.String("refund_reference", refund.Reference))

	e.notify(ctx, order.UserID, order.ID, refundedNotification)

	return &RefundResult{
		PaymentID:       payment.ID,
		OrderID:         order.ID,
		RefundReference: refund.Reference,
		AmountRefunded:  refundAmount,
		Reason:          ReasonRefunded,
		Message:         "Refund processed successfully. Stock has been restored.",
	}, nil
}

// refundNotRecorded registra o caso em que o provedor estornou mas a
// transação local falhou; exige intervenção manual.
func (e *Engine) refundNotRecorded(ctx context.Context, paymentID string, refund *payments.RefundResult, err error) error {
	e.metrics.recordRefund(ctx, "not_recorded")
	e.logger.Error("❌ [REFUND] provider refunded but local state was not updated",
		zap.String("payment_id", paymentID),
		zap.String("refund_reference", refund.Reference),
		zap.Error(err))
	return apperrors.Unexpected(err)
}

func (e *Engine) notify(ctx context.Context, userID, orderID string, build noticeFunc) {
	ctx = context.WithoutCancel(ctx)

	email, err := e.emails.GetEmail(ctx, userID)
	if err != nil {
		e.logger.Warn("⚠️ notification skipped: email lookup failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}
	if err := e.notifier.Notify(ctx, build(orderID, email)); err != nil {
		e.logger.Warn("⚠️ notification failed",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

func amountMismatch(order *orders.Order, payment *payments.Payment, outcome Outcome) []string {
	var details []string
	if payment != nil && !payment.Amount.Equal(order.TotalPrice) {
		details = append(details, fmt.Sprintf("Payment amount %s does not match order total %s",
			payment.Amount.StringFixed(2), order.TotalPrice.StringFixed(2)))
	}
	if outcome.Success {
		expected := order.TotalPrice
		if payment != nil {
			expected = payment.Amount
		}
		if !outcome.Amount.Equal(expected) {
			details = append(details, fmt.Sprintf("Verified amount %s does not match expected %s",
				outcome.Amount.StringFixed(2), expected.StringFixed(2)))
		}
	}
	return details
}

func cancelledResult(orderID string, reason Reason, message string, details ...string) *Result {
	return &Result{
		OrderID:       orderID,
		OrderStatus:   string(orders.OrderStatusCancelled),
		PaymentStatus: string(payments.PaymentStatusFailed),
		Reason:        reason,
		Message:       message,
		Details:       details,
	}
}

// storedResult descreve um pedido que já saiu de pending
func storedResult(order *orders.Order, payment *payments.Payment) *Result {
	result := &Result{
		OrderID:     order.ID,
		OrderStatus: string(order.Status),
	}
	if payment != nil {
		result.PaymentStatus = string(payment.Status)
	}

	switch order.Status {
	case orders.OrderStatusConfirmed, orders.OrderStatusShipped, orders.OrderStatusDelivered:
		result.Reason = ReasonAlreadyConfirmed
		result.Message = "Payment already verified. Order is confirmed."
	default:
		result.Reason = ReasonAlreadyCancelled
		result.Message = "Order was already cancelled."
	}
	return result
}
