package email

import (
	"context"
	"fmt"
	"strings"

	"mayfly-forms/internal/domain"
)

// Settings reúne a configuração de todos os provedores
type Settings struct {
	Provider           string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	MailgunAPIKey      string
	MailgunDomain      string
	MailgunBaseURL     string
	SendRate           float64
	SendBurst          int
}

// SupportedProviders lista os valores aceitos em EMAIL_PROVIDER
func SupportedProviders() []string {
	return []string{ProviderSES, ProviderMailgun, ProviderLog}
}

// NewDispatcher cria o dispatcher selecionado pela configuração, já com throttle
func NewDispatcher(ctx context.Context, settings Settings, renderer *Renderer, logger domain.Logger) (domain.EmailDispatcher, error) {
	if renderer == nil {
		return nil, fmt.Errorf("email renderer cannot be nil")
	}

	var dispatcher domain.EmailDispatcher
	switch strings.ToLower(strings.TrimSpace(settings.Provider)) {
	case ProviderSES:
		ses, err := NewSESDispatcher(ctx, settings.AWSRegion, settings.AWSAccessKeyID, settings.AWSSecretAccessKey, renderer, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES dispatcher: %w", err)
		}
		dispatcher = ses
	case ProviderMailgun:
		if settings.MailgunAPIKey == "" || settings.MailgunDomain == "" {
			return nil, fmt.Errorf("mailgun requires MAILGUN_API_KEY and MAILGUN_DOMAIN")
		}
		dispatcher = NewMailgunDispatcher(settings.MailgunAPIKey, settings.MailgunDomain, settings.MailgunBaseURL, renderer, logger)
	case ProviderLog:
		dispatcher = NewLogDispatcher(renderer, logger)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, settings.Provider)
	}

	logger.Info("Email dispatcher created", map[string]interface{}{
		"provider":   dispatcher.Name(),
		"send_rate":  settings.SendRate,
		"send_burst": settings.SendBurst,
	})

	return NewThrottledDispatcher(dispatcher, settings.SendRate, settings.SendBurst), nil
}
