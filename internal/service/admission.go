package service

import (
	"context"
	"fmt"
	"time"

	"mayfly-forms/internal/auth"
	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/logger"
	"mayfly-forms/internal/metrics"
)

const (
	DefaultSendTimeout = 10 * time.Second

	detailUnauthorized   = "invalid or missing API key"
	detailRateLimited    = "rate limit exceeded"
	detailDeliveryFailed = "email delivery failed"
)

// Dependencies reúne os colaboradores do pipeline de admissão
type Dependencies struct {
	Keys        domain.KeyStore
	Limiter     domain.RateLimiterService
	Validator   domain.Validator
	Dispatcher  domain.EmailDispatcher
	Receipts    domain.ReceiptStore
	Clock       domain.Clock
	Metrics     *metrics.Metrics
	Logger      domain.Logger
	SendTimeout time.Duration
}

// AdmissionPipeline aplica, nesta ordem, autenticação, rate limit e validação.
// A primeira etapa que falha decide a rejeição; só uma submissão completa chega ao dispatcher.
type AdmissionPipeline struct {
	keys        domain.KeyStore
	limiter     domain.RateLimiterService
	validator   domain.Validator
	dispatcher  domain.EmailDispatcher
	receipts    domain.ReceiptStore
	clock       domain.Clock
	metrics     *metrics.Metrics
	logger      domain.Logger
	sendTimeout time.Duration
}

// NewAdmissionPipeline cria o pipeline
func NewAdmissionPipeline(deps Dependencies) *AdmissionPipeline {
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = DefaultSendTimeout
	}
	return &AdmissionPipeline{
		keys:        deps.Keys,
		limiter:     deps.Limiter,
		validator:   deps.Validator,
		dispatcher:  deps.Dispatcher,
		receipts:    deps.Receipts,
		clock:       deps.Clock,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		sendTimeout: deps.SendTimeout,
	}
}

// Admit decide se a requisição pode seguir para o envio.
// O erro é reservado para falhas internas; rejeições voltam no veredito.
func (p *AdmissionPipeline) Admit(ctx context.Context, req domain.InboundRequest) (*domain.AdmissionVerdict, error) {
	log := p.logger.WithContext(ctx)

	if !p.keys.IsValid(req.APIKey) {
		p.metrics.IncrementVerdict(string(domain.RejectUnauthorized))
		log.Warn("Request rejected: unauthorized", map[string]interface{}{
			"client_ip":   req.ClientIP,
			"key_present": req.APIKey != "",
		})
		return domain.Reject(&domain.Rejection{
			Kind:   domain.RejectUnauthorized,
			Detail: detailUnauthorized,
		}), nil
	}

	limit, err := p.limiter.Admit(ctx, req.ClientIP)
	if err != nil {
		p.metrics.IncrementVerdict("error")
		log.Error("Rate limiter failed", err, map[string]interface{}{
			"client_ip": req.ClientIP,
		})
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if !limit.Allowed {
		p.metrics.IncrementVerdict(string(domain.RejectRateLimited))
		return domain.Reject(&domain.Rejection{
			Kind:       domain.RejectRateLimited,
			Detail:     detailRateLimited,
			RetryAfter: limit.RetryAfterSeconds(),
		}), nil
	}

	submission, verr := p.validator.Validate(req.Body)
	if verr != nil {
		p.metrics.IncrementVerdict(string(domain.RejectInvalid))
		log.Info("Request rejected: invalid payload", map[string]interface{}{
			"client_ip": req.ClientIP,
			"code":      verr.Code,
			"field":     verr.Field,
		})
		return domain.Reject(&domain.Rejection{
			Kind:       domain.RejectInvalid,
			Detail:     verr.Message,
			Validation: verr,
		}), nil
	}

	p.metrics.IncrementVerdict("admitted")
	return domain.Allow(submission), nil
}

// Submit executa o pipeline e, se admitido, entrega a submissão ao dispatcher
// com um deadline de SendTimeout. O veredito já foi contado em Admit; o resultado
// da entrega vai apenas para DispatchTotal.
func (p *AdmissionPipeline) Submit(ctx context.Context, req domain.InboundRequest) (*domain.SubmissionResult, error) {
	verdict, err := p.Admit(ctx, req)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed() {
		return &domain.SubmissionResult{Rejection: verdict.Rejection}, nil
	}

	log := p.logger.WithContext(ctx)
	submission := verdict.Submission

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.dispatcher.Send(sendCtx, submission)
	if err == nil && (result == nil || result.MessageID == "") {
		err = &domain.DispatchError{Provider: p.dispatcher.Name(), Reason: "provider returned no message id"}
	}
	if err != nil {
		p.metrics.ObserveDispatch(p.dispatcher.Name(), "failure", start)
		log.Error("Email delivery failed", err, map[string]interface{}{
			"provider":  p.dispatcher.Name(),
			"recipient": logger.RedactEmail(submission.ToEmail),
			"client_ip": req.ClientIP,
		})
		return &domain.SubmissionResult{Rejection: &domain.Rejection{
			Kind:   domain.RejectDeliveryFailed,
			Detail: detailDeliveryFailed,
		}}, nil
	}

	p.metrics.ObserveDispatch(result.Provider, "success", start)

	p.saveReceipt(ctx, req, submission, result)

	log.Info("Form submitted", map[string]interface{}{
		"provider":    result.Provider,
		"message_id":  result.MessageID,
		"recipient":   logger.RedactEmail(submission.ToEmail),
		"field_count": len(submission.Fields),
	})

	return &domain.SubmissionResult{MessageID: result.MessageID}, nil
}

// saveReceipt grava o recibo de entrega; falhas só são registradas no log,
// pois o email já foi aceito pelo provedor
func (p *AdmissionPipeline) saveReceipt(ctx context.Context, req domain.InboundRequest, sub *domain.FormSubmission, result *domain.DispatchResult) {
	if p.receipts == nil {
		return
	}

	receipt := &domain.DeliveryReceipt{
		MessageID:      result.MessageID,
		Provider:       result.Provider,
		Recipient:      logger.RedactEmail(sub.ToEmail),
		SourceURL:      sub.SourceURL,
		FieldCount:     len(sub.Fields),
		KeyFingerprint: auth.Fingerprint(req.APIKey),
		ClientIP:       req.ClientIP,
		SentAt:         p.clock.Now().UTC(),
	}

	if err := p.receipts.Save(ctx, receipt); err != nil {
		p.logger.WithContext(ctx).Error("Failed to save delivery receipt", err, map[string]interface{}{
			"message_id": result.MessageID,
		})
	}
}
