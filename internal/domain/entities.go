package domain

import "time"

// RateWindow define uma janela fixa de rate limiting (ex.: 10 por minuto)
type RateWindow struct {
	Name  string        `json:"name" yaml:"name"`
	Size  time.Duration `json:"size" yaml:"size"`
	Limit int           `json:"limit" yaml:"limit"`
}

// WindowCounter representa o estado atual de uma janela para uma identidade
type WindowCounter struct {
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Start     time.Time `json:"start"`
	ResetAt   time.Time `json:"resetAt"`
}

// RateLimitResult representa o resultado de uma verificação de rate limit
type RateLimitResult struct {
	Allowed bool `json:"allowed"`
	// RetryAfter é o tempo até todas as janelas violadas reiniciarem; zero quando permitido.
	RetryAfter time.Duration   `json:"retryAfter"`
	Windows    []WindowCounter `json:"windows"`
}

// RetryAfterSeconds arredonda RetryAfter para cima, nunca abaixo de 1 quando negado
func (r *RateLimitResult) RetryAfterSeconds() int {
	if r == nil || r.Allowed {
		return 0
	}
	seconds := int((r.RetryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// RateLimitStatus é a visão administrativa dos contadores de uma identidade
type RateLimitStatus struct {
	Identity string          `json:"identity"`
	Tracked  bool            `json:"tracked"`
	Windows  []WindowCounter `json:"windows"`
}

// InboundRequest é a representação da requisição independente de transporte
type InboundRequest struct {
	APIKey   string
	ClientIP string
	Body     []byte
}

// FormSubmission é o corpo já validado e sanitizado
type FormSubmission struct {
	ToEmail   string            `json:"to_email"`
	FromEmail string            `json:"from_email"`
	Subject   string            `json:"subject"`
	SourceURL string            `json:"source_url,omitempty"`
	Fields    map[string]string `json:"fields"`
	// FieldOrder preserva a ordem em que os campos chegaram no payload
	FieldOrder []string `json:"-"`
}

// OrderedFields retorna os campos na ordem original do payload
func (s *FormSubmission) OrderedFields() []Field {
	fields := make([]Field, 0, len(s.Fields))
	seen := make(map[string]bool, len(s.Fields))
	for _, name := range s.FieldOrder {
		if value, ok := s.Fields[name]; ok && !seen[name] {
			fields = append(fields, Field{Name: name, Value: value})
			seen[name] = true
		}
	}
	for name, value := range s.Fields {
		if !seen[name] {
			fields = append(fields, Field{Name: name, Value: value})
		}
	}
	return fields
}

// Field é um par nome/valor do formulário
type Field struct {
	Name  string
	Value string
}

// RejectKind define os tipos de rejeição do pipeline
type RejectKind string

const (
	RejectUnauthorized   RejectKind = "unauthorized"
	RejectRateLimited    RejectKind = "rate_limited"
	RejectInvalid        RejectKind = "invalid"
	RejectDeliveryFailed RejectKind = "delivery_failed"
)

// Rejection é o motivo único de uma recusa
type Rejection struct {
	Kind       RejectKind       `json:"kind"`
	Detail     string           `json:"detail"`
	RetryAfter int              `json:"retryAfter,omitempty"`
	Validation *ValidationError `json:"validation,omitempty"`
}

// AdmissionVerdict é o resultado do pipeline: ou uma submissão completa ou uma rejeição
type AdmissionVerdict struct {
	Submission *FormSubmission
	Rejection  *Rejection
}

// Allowed indica se todas as etapas passaram
func (v *AdmissionVerdict) Allowed() bool {
	return v != nil && v.Submission != nil && v.Rejection == nil
}

// Allow cria um veredito de admissão
func Allow(submission *FormSubmission) *AdmissionVerdict {
	return &AdmissionVerdict{Submission: submission}
}

// Reject cria um veredito de rejeição
func Reject(rejection *Rejection) *AdmissionVerdict {
	return &AdmissionVerdict{Rejection: rejection}
}

// DispatchResult é o retorno de sucesso do provedor de email
type DispatchResult struct {
	MessageID string `json:"messageId"`
	Provider  string `json:"provider"`
}

// SubmissionResult é o resultado final de uma submissão
type SubmissionResult struct {
	MessageID string
	Rejection *Rejection
}

// Accepted indica se o email foi entregue ao provedor
func (r *SubmissionResult) Accepted() bool {
	return r != nil && r.Rejection == nil && r.MessageID != ""
}

// DeliveryReceipt registra uma entrega bem sucedida para auditoria
type DeliveryReceipt struct {
	MessageID      string    `json:"messageId"`
	Provider       string    `json:"provider"`
	Recipient      string    `json:"recipient"` // email mascarado
	SourceURL      string    `json:"sourceUrl,omitempty"`
	FieldCount     int       `json:"fieldCount"`
	KeyFingerprint string    `json:"keyFingerprint"`
	ClientIP       string    `json:"clientIp"`
	SentAt         time.Time `json:"sentAt"`
}
