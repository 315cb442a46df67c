// Package apperrors define a taxonomia de erros do serviço e o mapeamento
// para respostas HTTP estáveis.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifica um erro pela forma como o chamador deve reagir a ele
type Kind string

const (
	KindValidation         Kind = "validation"
	KindInsufficientStock  Kind = "insufficient_stock"
	KindNotFound           Kind = "not_found"
	KindGatewayUnavailable Kind = "gateway_unavailable"
	KindStateConflict      Kind = "state_conflict"
	KindUnexpected         Kind = "unexpected"
)

// Error é o erro tipado usado entre use cases e handlers
type Error struct {
	Kind Kind
	// Code é um identificador estável exposto ao cliente (ex.: "empty_cart")
	Code    string
	Message string
	// Details só é exposto para erros corrigíveis pelo usuário
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code, message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Details: details}
}

func InsufficientStock(details ...string) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Code:    "insufficient_stock",
		Message: "Not enough stock for one or more items",
		Details: details,
	}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func GatewayUnavailable(err error) *Error {
	return &Error{
		Kind:    KindGatewayUnavailable,
		Code:    "payment_provider_unavailable",
		Message: "Payment provider is unavailable, please try again",
		Err:     err,
	}
}

func StateConflict(code, message string) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Message: message}
}

func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Code: "internal_error", Message: "Something went wrong", Err: err}
}

// KindOf retorna o Kind do primeiro *Error na cadeia, ou KindUnexpected
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus mapeia o Kind para o status HTTP
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInsufficientStock:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	case KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
