package receipts

import (
	"fmt"
	"strings"
	"time"

	"mayfly-forms/internal/domain"
)

// StoreType define os tipos de store disponíveis
type StoreType string

const (
	RedisStoreType  StoreType = "redis"
	MemoryStoreType StoreType = "memory"
)

// StoreConfig contém configurações para criação do store
type StoreConfig struct {
	Type        StoreType
	TTL         time.Duration
	RedisConfig *RedisConfig
}

// RedisConfig contém configurações específicas do Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	Database int
}

// StoreFactory cria instâncias de ReceiptStore seguindo Strategy Pattern
type StoreFactory struct {
	clock domain.Clock
}

// NewStoreFactory cria uma nova instância da factory
func NewStoreFactory(clock domain.Clock) *StoreFactory {
	return &StoreFactory{clock: clock}
}

// CreateStore cria uma instância de store baseada na configuração
func (f *StoreFactory) CreateStore(config *StoreConfig, logger domain.Logger) (domain.ReceiptStore, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	switch StoreType(strings.ToLower(string(config.Type))) {
	case RedisStoreType:
		rc := config.RedisConfig
		store, err := NewRedisStore(rc.Host, rc.Port, rc.Password, rc.Database, config.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis receipt store: %w", err)
		}
		logger.Info("Redis receipt store created successfully", map[string]interface{}{
			"host":     rc.Host,
			"port":     rc.Port,
			"database": rc.Database,
		})
		return store, nil
	default:
		logger.Info("Memory receipt store created successfully", map[string]interface{}{
			"ttl_seconds": config.TTL.Seconds(),
		})
		return NewMemoryStore(config.TTL, f.clock, logger), nil
	}
}

// GetSupportedTypes retorna os tipos de store suportados
func (f *StoreFactory) GetSupportedTypes() []StoreType {
	return []StoreType{RedisStoreType, MemoryStoreType}
}

// ValidateConfig valida uma configuração de store
func (f *StoreFactory) ValidateConfig(config *StoreConfig) error {
	if config == nil {
		return fmt.Errorf("receipt store config cannot be nil")
	}
	if config.TTL <= 0 {
		return fmt.Errorf("receipt TTL must be positive, got: %s", config.TTL)
	}

	switch StoreType(strings.ToLower(string(config.Type))) {
	case RedisStoreType:
		return validateRedisConfig(config.RedisConfig)
	case MemoryStoreType:
		return nil
	default:
		return fmt.Errorf("unsupported receipt store type: %s", config.Type)
	}
}

// validateRedisConfig valida configuração do Redis
func validateRedisConfig(config *RedisConfig) error {
	if config == nil {
		return fmt.Errorf("Redis config cannot be nil")
	}
	if config.Host == "" {
		return fmt.Errorf("Redis host cannot be empty")
	}
	if config.Port == "" {
		return fmt.Errorf("Redis port cannot be empty")
	}
	if config.Database < 0 || config.Database > 15 {
		return fmt.Errorf("Redis database must be between 0 and 15, got: %d", config.Database)
	}
	return nil
}

// BuildStoreConfig monta a configuração do store a partir dos valores carregados
func BuildStoreConfig(storeType string, ttl time.Duration, redisHost, redisPort, redisPassword string, redisDB int) *StoreConfig {
	config := &StoreConfig{
		Type: StoreType(strings.ToLower(strings.TrimSpace(storeType))),
		TTL:  ttl,
	}

	if config.Type == RedisStoreType {
		config.RedisConfig = &RedisConfig{
			Host:     redisHost,
			Port:     redisPort,
			Password: redisPassword,
			Database: redisDB,
		}
	}

	return config
}
