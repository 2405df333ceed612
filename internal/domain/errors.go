package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyKeySet     = errors.New("no API keys configured")
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrUnknownProvider = errors.New("unknown email provider")
	ErrEmptyIdentity   = errors.New("client identity is required")
	ErrNoWindows       = errors.New("at least one rate window is required")
)

// ValidationCode identifica a regra de validação que falhou
type ValidationCode string

const (
	CodeMalformedPayload          ValidationCode = "malformed_payload"
	CodeMissingOrInvalidRecipient ValidationCode = "missing_or_invalid_recipient"
	CodeEmptyFields               ValidationCode = "empty_fields"
	CodeInvalidField              ValidationCode = "invalid_field"
	CodeSuspiciousContent         ValidationCode = "suspicious_content"
	CodeInvalidSender             ValidationCode = "invalid_sender"
	CodeInvalidSourceURL          ValidationCode = "invalid_source_url"
	CodeInvalidSubject            ValidationCode = "invalid_subject"
	CodeFieldTooLong              ValidationCode = "field_too_long"
)

// ValidationError descreve a primeira falha de validação.
// Field nunca contém o conteúdo rejeitado, apenas o nome (já sanitizado) do campo.
type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DispatchError é a falha reportada por um provedor de email.
// Reason é específico do provedor e não deve ser devolvido ao cliente.
type DispatchError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s dispatch failed: %s", e.Provider, e.Reason)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsDispatchError verifica se o erro veio de um provedor de email
func IsDispatchError(err error) bool {
	var dispatchErr *DispatchError
	return errors.As(err, &dispatchErr)
}
