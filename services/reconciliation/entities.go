package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason resume o desfecho de uma reconciliação
type Reason string

const (
	ReasonConfirmed         Reason = "confirmed"
	ReasonAlreadyConfirmed  Reason = "already_confirmed"
	ReasonAlreadyCancelled  Reason = "already_cancelled"
	ReasonPaymentFailed     Reason = "payment_failed"
	ReasonAmountMismatch    Reason = "amount_mismatch"
	ReasonInsufficientStock Reason = "insufficient_stock"
	ReasonUnresolved        Reason = "unresolved"
	ReasonQueued            Reason = "queued"
	ReasonRefunded          Reason = "refunded"
	ReasonAlreadyRefunded   Reason = "already_refunded"
)

// Ref identifica o alvo da reconciliação: pela referência do provedor ou
// diretamente pelo pedido.
type Ref struct {
	TxRef   string
	OrderID string
}

// Outcome é o resultado da verificação no provedor, já normalizado
type Outcome struct {
	Success bool
	Amount  decimal.Decimal
}

// Result é o estado final devolvido ao chamador
type Result struct {
	OrderID       string   `json:"order_id"`
	OrderStatus   string   `json:"order_status"`
	PaymentStatus string   `json:"payment_status,omitempty"`
	Reason        Reason   `json:"reason"`
	Message       string   `json:"message"`
	Details       []string `json:"details,omitempty"`
}

// Settled indica que o pedido terminou confirmado
func (r *Result) Settled() bool {
	return r.Reason == ReasonConfirmed || r.Reason == ReasonAlreadyConfirmed
}

// RefundRequest é o corpo opcional de POST /api/payments/:id/refund
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// RefundResult é devolvido após o estorno
type RefundResult struct {
	PaymentID       string          `json:"payment_id"`
	OrderID         string          `json:"order_id"`
	RefundReference string          `json:"refund_reference"`
	AmountRefunded  decimal.Decimal `json:"amount_refunded"`
	Reason          Reason          `json:"reason"`
	Message         string          `json:"message"`
}

// Job é a mensagem da fila de reconciliação
type Job struct {
	TxRef   string `json:"tx_ref"`
	Attempt int    `json:"attempt"`

	// NotBefore adia o processamento de uma nova tentativa
	NotBefore time.Time `json:"not_before"`
}

// Notification é o email enviado ao cliente ao fim de uma transição
type Notification struct {
	OrderID string `json:"order_id"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
