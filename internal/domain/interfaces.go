package domain

import (
	"context"
	"time"
)

// Clock fornece o tempo atual; injetado para permitir testes determinísticos
type Clock interface {
	Now() time.Time
}

// KeyStore verifica se uma API key pertence ao conjunto configurado
type KeyStore interface {
	IsValid(candidate string) bool
}

// RateLimiterStorage define a tabela de contadores por identidade
type RateLimiterStorage interface {
	// Admit aplica as janelas à identidade no instante now e registra a tentativa.
	// Em uma negação, RetryAfter aponta para o reset mais tardio entre as janelas estouradas.
	Admit(ctx context.Context, key string, windows []RateWindow, now time.Time) (*RateLimitResult, error)

	// Status retorna os contadores sem consumir capacidade
	Status(ctx context.Context, key string, windows []RateWindow, now time.Time) (*RateLimitStatus, error)

	// Reset limpa os dados de uma chave
	Reset(ctx context.Context, key string) error

	// Close libera os recursos do storage
	Close() error
}

// RateLimiterService define a interface para o serviço de rate limiting
type RateLimiterService interface {
	Admit(ctx context.Context, identity string) (*RateLimitResult, error)
	Status(ctx context.Context, identity string) (*RateLimitStatus, error)
	Reset(ctx context.Context, identity string) error
}

// Validator transforma o corpo bruto em uma FormSubmission validada
type Validator interface {
	Validate(raw []byte) (*FormSubmission, *ValidationError)
}

// EmailDispatcher entrega uma submissão ao provedor de email.
// Send deve respeitar o deadline do contexto.
type EmailDispatcher interface {
	Send(ctx context.Context, submission *FormSubmission) (*DispatchResult, error)
	Name() string
}

// ReceiptStore guarda os recibos de entrega
type ReceiptStore interface {
	Save(ctx context.Context, receipt *DeliveryReceipt) error
	Get(ctx context.Context, messageID string) (*DeliveryReceipt, error)
	Close() error
}

// AdmissionService define o pipeline de admissão
type AdmissionService interface {
	Admit(ctx context.Context, req InboundRequest) (*AdmissionVerdict, error)
	Submit(ctx context.Context, req InboundRequest) (*SubmissionResult, error)
}

// Logger define a interface para logging estruturado
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	WithContext(ctx context.Context) Logger
}
