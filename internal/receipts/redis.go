package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mayfly-forms/internal/domain"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "mayfly:receipt:"

// RedisStore implementa domain.ReceiptStore usando Redis
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger domain.Logger
}

// NewRedisStore cria uma nova instância do RedisStore
func NewRedisStore(host, port, password string, db int, ttl time.Duration, logger domain.Logger) (*RedisStore, error) {
	// Configura cliente Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,

		// Configurações de performance
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	// Testa a conexão
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", map[string]interface{}{
		"host": host,
		"port": port,
		"db":   db,
	})

	return &RedisStore{
		client: rdb,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Save grava o recibo como JSON com TTL
func (r *RedisStore) Save(ctx context.Context, receipt *domain.DeliveryReceipt) error {
	start := time.Now()
	if receipt == nil || receipt.MessageID == "" {
		return fmt.Errorf("receipt must have a message id")
	}

	key := BuildKey(receipt.MessageID)
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logStorageOperation("SET", key, false, time.Since(start).Seconds()*1000, err)
		return fmt.Errorf("failed to save receipt %s: %w", receipt.MessageID, err)
	}

	r.logStorageOperation("SET", key, true, time.Since(start).Seconds()*1000, nil)
	return nil
}

// Get recupera um recibo
func (r *RedisStore) Get(ctx context.Context, messageID string) (*domain.DeliveryReceipt, error) {
	start := time.Now()
	key := BuildKey(messageID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logStorageOperation("GET", key, true, time.Since(start).Seconds()*1000, nil)
			return nil, domain.ErrReceiptNotFound
		}
		r.logStorageOperation("GET", key, false, time.Since(start).Seconds()*1000, err)
		return nil, fmt.Errorf("failed to get receipt %s: %w", messageID, err)
	}

	var receipt domain.DeliveryReceipt
	if err := json.Unmarshal([]byte(result), &receipt); err != nil {
		r.logStorageOperation("GET", key, false, time.Since(start).Seconds()*1000, err)
		return nil, fmt.Errorf("failed to unmarshal receipt %s: %w", messageID, err)
	}

	r.logStorageOperation("GET", key, true, time.Since(start).Seconds()*1000, nil)
	return &receipt, nil
}

// Health verifica se o Redis responde
func (r *RedisStore) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close fecha a conexão com o Redis
func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	r.logger.Info("Redis connection closed", nil)
	return nil
}

// logStorageOperation registra operações de storage
func (r *RedisStore) logStorageOperation(operation, key string, success bool, latency float64, err error) {
	if success {
		r.logger.Debug("Storage operation completed", map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	} else {
		r.logger.Error("Storage operation failed", err, map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	}
}

// BuildKey constrói a chave Redis de um recibo
func BuildKey(messageID string) string {
	return keyPrefix + messageID
}
