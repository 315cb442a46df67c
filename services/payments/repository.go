package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/planet-shop/pkg/database"
)

var ErrPaymentNotFound = fmt.Errorf("payment %w", database.ErrNotFound)

// Repository define a interface para operações de banco de dados de pagamentos
type Repository interface {
	CreatePayment(ctx context.Context, tx database.Tx, payment *Payment) error
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*Payment, error)
	GetPaymentByTxRef(ctx context.Context, txRef string) (*Payment, error)
	GetPaymentByOrderIDForUpdate(ctx context.Context, tx database.Tx, orderID string) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, tx database.Tx, paymentID string, status PaymentStatus) error
	RotateTxRef(ctx context.Context, tx database.Tx, paymentID string, txRef string, method string) error
	SetAuthorizationURL(ctx context.Context, paymentID string, txRef string, url string) error
	MarkFailed(ctx context.Context, paymentID string, txRef string) error
}

// PaymentRepository implementa Repository usando PostgreSQL
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository cria uma nova instância de PaymentRepository
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, order_id, method, tx_ref, amount::text, status, authorization_url, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var amount, status string
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.TxRef, &amount, &status,
		&p.AuthorizationURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	p.Status = PaymentStatus(status)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment insere o pagamento; o commit acontece antes da chamada ao provedor
func (r *PaymentRepository) CreatePayment(ctx context.Context, tx database.Tx, payment *Payment) error {
	pgTx := database.PgxTx(tx)

	_, err := pgTx.Exec(ctx, `
		INSERT INTO payments (id, order_id, method, tx_ref, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, payment.ID, payment.OrderID, payment.Method, payment.TxRef, payment.Amount.String(),
		string(payment.Status), payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
}

func (r *PaymentRepository) GetPaymentByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
}

// GetPaymentByTxRef resolve a referência do provedor (sem lock)
func (r *PaymentRepository) GetPaymentByTxRef(ctx context.Context, txRef string) (*Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tx_ref = $1`, txRef))
}

// GetPaymentByOrderIDForUpdate bloqueia o pagamento; chamar só depois do lock do pedido
func (r *PaymentRepository) GetPaymentByOrderIDForUpdate(ctx context.Context, tx database.Tx, orderID string) (*Payment, error) {
	pgTx := database.PgxTx(tx)

	payment, err := scanPayment(pgTx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		FOR UPDATE
	`, orderID))
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("failed to get payment with lock: %w", err)
	}
	return payment, err
}

func (r *PaymentRepository) UpdatePaymentStatus(ctx context.Context, tx database.Tx, paymentID string, status PaymentStatus) error {
	pgTx := database.PgxTx(tx)

	tag, err := pgTx.Exec(ctx, `
		UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2
	`, string(status), paymentID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// RotateTxRef troca a referência de uma tentativa que não chegou ao provedor
// (ou falhou) e volta o pagamento para pending.
func (r *PaymentRepository) RotateTxRef(ctx context.Context, tx database.Tx, paymentID string, txRef string, method string) error {
	pgTx := database.PgxTx(tx)

	_, err := pgTx.Exec(ctx, `
		UPDATE payments
		SET tx_ref = $2, method = $3, status = 'pending', authorization_url = '', updated_at = NOW()
		WHERE id = $1
	`, paymentID, txRef, method)
	if err != nil {
		return fmt.Errorf("failed to rotate tx_ref: %w", err)
	}
	return nil
}

// SetAuthorizationURL só grava se a referência ainda for a mesma
func (r *PaymentRepository) SetAuthorizationURL(ctx context.Context, paymentID string, txRef string, url string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments SET authorization_url = $3, updated_at = NOW()
		WHERE id = $1 AND tx_ref = $2
	`, paymentID, txRef, url)
	if err != nil {
		return fmt.Errorf("failed to store authorization url: %w", err)
	}
	return nil
}

// MarkFailed marca como failed uma tentativa pendente rejeitada pelo provedor
func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID string, txRef string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND tx_ref = $2 AND status = 'pending'
	`, paymentID, txRef)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}
