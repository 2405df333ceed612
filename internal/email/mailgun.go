package email

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mayfly-forms/internal/domain"
	"mayfly-forms/internal/logger"
)

const (
	// ProviderMailgun identifica o provedor Mailgun
	ProviderMailgun = "mailgun"

	DefaultMailgunBaseURL = "https://api.mailgun.net/v3"

	maxErrorBodyLength = 200
)

// MailgunDispatcher envia submissões pela Messages API do Mailgun
type MailgunDispatcher struct {
	apiKey   string
	domain   string
	baseURL  string
	client   *http.Client
	renderer *Renderer
	logger   domain.Logger
}

// NewMailgunDispatcher cria um dispatcher para o domínio informado
func NewMailgunDispatcher(apiKey, mailDomain, baseURL string, renderer *Renderer, log domain.Logger) *MailgunDispatcher {
	if baseURL == "" {
		baseURL = DefaultMailgunBaseURL
	}
	return &MailgunDispatcher{
		apiKey:   apiKey,
		domain:   mailDomain,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
		renderer: renderer,
		logger:   log,
	}
}

// Name retorna o identificador do provedor
func (m *MailgunDispatcher) Name() string {
	return ProviderMailgun
}

// Send entrega a submissão ao Mailgun
func (m *MailgunDispatcher) Send(ctx context.Context, sub *domain.FormSubmission) (*domain.DispatchResult, error) {
	if m.apiKey == "" {
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: "API key not configured"}
	}

	msg, err := m.renderer.Render(sub)
	if err != nil {
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: "render failed", Err: err}
	}

	form := url.Values{}
	form.Add("from", msg.From)
	form.Add("to", msg.To)
	form.Add("subject", msg.Subject)
	form.Add("html", msg.HTML)
	form.Add("text", msg.Text)
	if msg.ReplyTo != "" {
		form.Add("h:Reply-To", msg.ReplyTo)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", m.baseURL, m.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.WithContext(ctx).Error("Mailgun send failed", err, map[string]interface{}{
			"recipient": logger.RedactEmail(msg.To),
		})
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: "send request", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		m.logger.WithContext(ctx).Error("Mailgun response read failed", err, map[string]interface{}{
			"recipient": logger.RedactEmail(msg.To),
			"status":    resp.StatusCode,
		})
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: "read response body", Err: err}
	}

	if resp.StatusCode >= 400 {
		reason := fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), maxErrorBodyLength))
		m.logger.WithContext(ctx).Error("Mailgun rejected message", nil, map[string]interface{}{
			"recipient": logger.RedactEmail(msg.To),
			"status":    resp.StatusCode,
			"reason":    reason,
		})
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: reason}
	}

	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: "invalid response body", Err: err}
	}
	messageID := strings.Trim(result.ID, "<>")
	if messageID == "" {
		return nil, &domain.DispatchError{Provider: ProviderMailgun, Reason: "response without message id"}
	}

	m.logger.WithContext(ctx).Info("Mailgun email sent", map[string]interface{}{
		"recipient":  logger.RedactEmail(msg.To),
		"message_id": messageID,
	})

	return &domain.DispatchResult{MessageID: messageID, Provider: ProviderMailgun}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
