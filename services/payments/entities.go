package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus representa os possíveis status de um pagamento
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment é a tentativa de pagamento de um pedido (1:1)
type Payment struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	Method           string          `json:"method"`
	TxRef            string          `json:"tx_ref"`
	Amount           decimal.Decimal `json:"amount"`
	Status           PaymentStatus   `json:"status"`
	AuthorizationURL string          `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewTxRef gera a referência enviada ao provedor
func NewTxRef() string {
	return "PSK-" + uuid.New().String()
}

// NewPayment cria um pagamento pendente com uma referência nova
func NewPayment(orderID, method string, amount decimal.Decimal) *Payment {
	now := time.Now()
	return &Payment{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Method:    method,
		TxRef:     NewTxRef(),
		Amount:    amount,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// InitiateRequest é o corpo de POST /api/payments/initiate
type InitiateRequest struct {
	OrderID       string           `json:"order_id" binding:"required"`
	PaymentMethod string           `json:"payment_method"`
	Amount        *decimal.Decimal `json:"amount"`
}

// InitiateResult é devolvido ao cliente para redirecioná-lo ao provedor
type InitiateResult struct {
	PaymentID        string `json:"payment_id"`
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// PaymentDetail junta o pagamento ao status atual do pedido
type PaymentDetail struct {
	PaymentID   string          `json:"payment_id"`
	OrderID     string          `json:"order_id"`
	OrderStatus string          `json:"order_status"`
	Amount      decimal.Decimal `json:"amount"`
	Status      PaymentStatus   `json:"status"`
	Method      string          `json:"method"`
	TxRef       string          `json:"tx_ref"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderPayment é o histórico de pagamento de um pedido
type OrderPayment struct {
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	Payment     *Payment `json:"payment"`
}
