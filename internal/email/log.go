package email

import (
	"context"

	"github.com/google/uuid"

	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/logger"
)

// ProviderLog identifica o dispatcher de desenvolvimento
const ProviderLog = "log"

// LogDispatcher não envia nada: registra a mensagem renderizada no log.
// Útil em desenvolvimento e nos testes end-to-end.
type LogDispatcher struct {
	renderer *Renderer
	logger   domain.Logger
}

// NewLogDispatcher cria o dispatcher de log
func NewLogDispatcher(renderer *Renderer, log domain.Logger) *LogDispatcher {
	return &LogDispatcher{renderer: renderer, logger: log}
}

// Name retorna o identificador do provedor
func (l *LogDispatcher) Name() string {
	return ProviderLog
}

// Send renderiza a mensagem e devolve um id gerado localmente
func (l *LogDispatcher) Send(ctx context.Context, sub *domain.FormSubmission) (*domain.DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.DispatchError{Provider: ProviderLog, Reason: "context done", Err: err}
	}

	msg, err := l.renderer.Render(sub)
	if err != nil {
		return nil, &domain.DispatchError{Provider: ProviderLog, Reason: "render failed", Err: err}
	}

	messageID := "log-" + uuid.NewString()
	l.logger.WithContext(ctx).Info("Email rendered (log provider)", map[string]interface{}{
		"message_id": messageID,
		"recipient":  logger.RedactEmail(msg.To),
		"subject":    msg.Subject,
		"reply_to":   msg.ReplyTo != "",
		"text_bytes": len(msg.Text),
		"html_bytes": len(msg.HTML),
	})
	l.logger.WithContext(ctx).Debug("Email text body", map[string]interface{}{
		"message_id": messageID,
		"body":       msg.Text,
	})

	return &domain.DispatchResult{MessageID: messageID, Provider: ProviderLog}, nil
}
