package service

import (
	"context"
	"fmt"
	"strings"

	"mayfly-forms/internal/domain"
)

// RateLimiterService implementa a lógica de negócio do rate limiting por identidade do cliente.
// As janelas são aplicadas em conjunto: a requisição só passa se todas tiverem capacidade.
type RateLimiterService struct {
	storage domain.RateLimiterStorage
	windows []domain.RateWindow
	clock   domain.Clock
	logger  domain.Logger
}

// NewRateLimiterService cria uma nova instância do serviço
func NewRateLimiterService(
	storage domain.RateLimiterStorage,
	windows []domain.RateWindow,
	clock domain.Clock,
	logger domain.Logger,
) *RateLimiterService {
	return &RateLimiterService{
		storage: storage,
		windows: append([]domain.RateWindow(nil), windows...),
		clock:   clock,
		logger:  logger,
	}
}

// Admit registra uma tentativa da identidade e decide se ela é admitida
func (s *RateLimiterService) Admit(ctx context.Context, identity string) (*domain.RateLimitResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, domain.ErrEmptyIdentity
	}

	storageKey := s.buildStorageKey(identity)
	now := s.clock.Now()

	result, err := s.storage.Admit(ctx, storageKey, s.windows, now)
	if err != nil {
		s.logger.Error("Failed to admit request", err, map[string]interface{}{
			"storage_key": storageKey,
		})
		return nil, fmt.Errorf("failed to admit request: %w", err)
	}

	if !result.Allowed {
		s.logger.Info("Rate limit exceeded", map[string]interface{}{
			"identity":    identity,
			"retry_after": result.RetryAfterSeconds(),
			"windows":     summarizeWindows(result.Windows),
		})
		return result, nil
	}

	s.logger.Debug("Request allowed", map[string]interface{}{
		"identity": identity,
		"windows":  summarizeWindows(result.Windows),
	})

	return result, nil
}

// Status retorna os contadores atuais da identidade sem consumir capacidade
func (s *RateLimiterService) Status(ctx context.Context, identity string) (*domain.RateLimitStatus, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, domain.ErrEmptyIdentity
	}

	status, err := s.storage.Status(ctx, s.buildStorageKey(identity), s.windows, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	if status != nil {
		status.Identity = identity
	}

	return status, nil
}

// Reset limpa os contadores de uma identidade
func (s *RateLimiterService) Reset(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.ErrEmptyIdentity
	}

	storageKey := s.buildStorageKey(identity)
	if err := s.storage.Reset(ctx, storageKey); err != nil {
		return fmt.Errorf("failed to reset key: %w", err)
	}

	s.logger.Info("Rate limit reset", map[string]interface{}{
		"identity":    identity,
		"storage_key": storageKey,
	})

	return nil
}

// Windows retorna uma cópia das janelas configuradas
func (s *RateLimiterService) Windows() []domain.RateWindow {
	return append([]domain.RateWindow(nil), s.windows...)
}

// buildStorageKey constrói a chave de storage no formato padrão
func (s *RateLimiterService) buildStorageKey(identity string) string {
	return fmt.Sprintf("rate_limit:ip:%s", identity)
}

// summarizeWindows resume os contadores para log ("minute=3/10")
func summarizeWindows(counters []domain.WindowCounter) string {
	parts := make([]string, 0, len(counters))
	for _, c := range counters {
		parts = append(parts, fmt.Sprintf("%s=%d/%d", c.Name, c.Count, c.Limit))
	}
	return strings.Join(parts, ",")
}
