package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// VerificationStatus é o resultado normalizado da verificação
type VerificationStatus string

const (
	VerificationSuccess VerificationStatus = "success"
	VerificationFailed  VerificationStatus = "failed"
	// VerificationPending: o provedor ainda não decidiu
	VerificationPending VerificationStatus = "pending"
)

// Initialization é a resposta de /transaction/initialize
type Initialization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification é a resposta de /transaction/verify
type Verification struct {
	Status         VerificationStatus
	ProviderStatus string
	Amount         decimal.Decimal
	CustomerEmail  string
	Reference      string
}

// RefundResult é a resposta de /refund
type RefundResult struct {
	Reference string
	Status    string
}

// Gateway abstrai o provedor de pagamentos
type Gateway interface {
	Initialize(ctx context.Context, email string, amount decimal.Decimal, txRef string) (*Initialization, error)
	Verify(ctx context.Context, txRef string) (*Verification, error)
	Refund(ctx context.Context, txRef string, amount decimal.Decimal) (*RefundResult, error)
}

// GatewayConfig configura o cliente do provedor
type GatewayConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Currency    string
	Timeout     time.Duration
}

// PaystackGateway implementa Gateway sobre a API HTTP do Paystack
type PaystackGateway struct {
	client *resty.Client
	cfg    GatewayConfig
	logger *zap.Logger
}

// NewPaystackGateway cria uma nova instância de PaystackGateway
func NewPaystackGateway(cfg GatewayConfig, logger *zap.Logger) *PaystackGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/json")

	return &PaystackGateway{client: client, cfg: cfg, logger: logger}
}

// envelope é o formato comum das respostas do provedor
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type refundData struct {
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	Transaction struct {
		Reference string `json:"reference"`
	} `json:"transaction"`
}

// ToMinorUnits converte o valor para a menor unidade da moeda (kobo, centavos)
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converte da menor unidade para o valor decimal
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// NormalizeStatus mapeia o status do provedor
func NormalizeStatus(providerStatus string) VerificationStatus {
	switch providerStatus {
	case "success":
		return VerificationSuccess
	case "failed", "abandoned", "reversed":
		return VerificationFailed
	default:
		return VerificationPending
	}
}

func (g *PaystackGateway) Initialize(ctx context.Context, email string, amount decimal.Decimal, txRef string) (*Initialization, error) {
	var out envelope[initializeData]
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"email":        email,
			"amount":       ToMinorUnits(amount),
			"reference":    txRef,
			"currency":     g.cfg.Currency,
			"callback_url": g.cfg.CallbackURL,
			"metadata": map[string]any{
				"tx_ref":         txRef,
				"customer_email": email,
			},
		}).
		SetResult(&out).
		SetError(&out).
		Post("/transaction/initialize")
	if err := g.check("initialize", txRef, resp, err, out.Status, out.Message); err != nil {
		return nil, err
	}

	return &Initialization{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

func (g *PaystackGateway) Verify(ctx context.Context, txRef string) (*Verification, error) {
	var out envelope[verifyData]
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("reference", txRef).
		SetResult(&out).
		SetError(&out).
		Get("/transaction/verify/{reference}")
	if err := g.check("verify", txRef, resp, err, out.Status, out.Message); err != nil {
		return nil, err
	}

	return &Verification{
		Status:         NormalizeStatus(out.Data.Status),
		ProviderStatus: out.Data.Status,
		Amount:         FromMinorUnits(out.Data.Amount),
		CustomerEmail:  out.Data.Customer.Email,
		Reference:      out.Data.Reference,
	}, nil
}

func (g *PaystackGateway) Refund(ctx context.Context, txRef string, amount decimal.Decimal) (*RefundResult, error) {
	var out envelope[refundData]
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"transaction": txRef,
			"amount":      ToMinorUnits(amount),
		}).
		SetResult(&out).
		SetError(&out).
		Post("/refund")
	if err := g.check("refund", txRef, resp, err, out.Status, out.Message); err != nil {
		return nil, err
	}

	ref := out.Data.Reference
	if ref == "" {
		ref = out.Data.Transaction.Reference
	}
	return &RefundResult{Reference: ref, Status: out.Data.Status}, nil
}

// check classifica a falha: rede, timeout e 5xx são GatewayUnavailable;
// 4xx e status:false são rejeições do provedor.
func (g *PaystackGateway) check(op, txRef string, resp *resty.Response, err error, ok bool, message string) error {
	if err != nil {
		g.logger.Warn("⚠️ [GATEWAY] request failed",
			zap.String("op", op), zap.String("tx_ref", txRef), zap.Error(err))
		return apperrors.GatewayUnavailable(fmt.Errorf("paystack %s: %w", op, err))
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		g.logger.Warn("⚠️ [GATEWAY] provider error",
			zap.String("op", op), zap.String("tx_ref", txRef), zap.Int("status", resp.StatusCode()))
		return apperrors.GatewayUnavailable(fmt.Errorf("paystack %s: http %d", op, resp.StatusCode()))
	}
	if resp.IsError() || !ok {
		g.logger.Info("❌ [GATEWAY] rejected",
			zap.String("op", op), zap.String("tx_ref", txRef),
			zap.Int("status", resp.StatusCode()), zap.String("message", message))
		rejected := apperrors.Validation("payment_rejected", "Payment provider rejected the request")
		rejected.Err = fmt.Errorf("paystack %s: %s", op, message)
		return rejected
	}
	return nil
}

// VerifySignature confere o header X-Paystack-Signature (HMAC-SHA512 do corpo)
func (g *PaystackGateway) VerifySignature(body []byte, signature string) bool {
	return VerifySignature(g.cfg.SecretKey, body, signature)
}

// VerifySignature compara em tempo constante
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
