package email

import (
	"context"

	"golang.org/x/time/rate"

	"mayfly-forms/internal/domain"
)

// ThrottledDispatcher limita a taxa de envios ao provedor (ex.: cota de envio do SES)
type ThrottledDispatcher struct {
	next    domain.EmailDispatcher
	limiter *rate.Limiter
}

// NewThrottledDispatcher envolve next com um token bucket; perSecond <= 0 desativa o limite
func NewThrottledDispatcher(next domain.EmailDispatcher, perSecond float64, burst int) domain.EmailDispatcher {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledDispatcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Name retorna o provedor envolvido
func (t *ThrottledDispatcher) Name() string {
	return t.next.Name()
}

// Send aguarda um token e delega; falha logo se a espera ultrapassaria o deadline do contexto
func (t *ThrottledDispatcher) Send(ctx context.Context, sub *domain.FormSubmission) (*domain.DispatchResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &domain.DispatchError{Provider: t.next.Name(), Reason: "send quota exhausted", Err: err}
	}
	return t.next.Send(ctx, sub)
}
