// Package receipts guarda os recibos de entrega das submissões enviadas.
// Recibos são apenas auditoria: nenhum estado de rate limit passa por aqui.
package receipts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mayfly-forms/internal/domain"
)

const purgeEvery = 100

type memoryItem struct {
	receipt   domain.DeliveryReceipt
	expiresAt time.Time
}

// MemoryStore implementa domain.ReceiptStore em memória, com expiração por TTL
type MemoryStore struct {
	items  map[string]memoryItem
	mutex  sync.RWMutex
	ttl    time.Duration
	clock  domain.Clock
	logger domain.Logger
	writes int
}

// NewMemoryStore cria o store em memória
func NewMemoryStore(ttl time.Duration, clock domain.Clock, logger domain.Logger) *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]memoryItem),
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}
}

// Save grava o recibo; recibos expirados são removidos periodicamente
func (m *MemoryStore) Save(ctx context.Context, receipt *domain.DeliveryReceipt) error {
	if receipt == nil || receipt.MessageID == "" {
		return fmt.Errorf("receipt must have a message id")
	}

	now := m.clock.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.items[receipt.MessageID] = memoryItem{receipt: *receipt, expiresAt: now.Add(m.ttl)}
	m.writes++
	if m.writes%purgeEvery == 0 {
		m.purgeLocked(now)
	}
	return nil
}

// Get retorna o recibo ou domain.ErrReceiptNotFound
func (m *MemoryStore) Get(ctx context.Context, messageID string) (*domain.DeliveryReceipt, error) {
	m.mutex.RLock()
	item, ok := m.items[messageID]
	m.mutex.RUnlock()

	if !ok || !m.clock.Now().Before(item.expiresAt) {
		return nil, domain.ErrReceiptNotFound
	}
	receipt := item.receipt
	return &receipt, nil
}

// Purge remove os recibos expirados e retorna quantos saíram
func (m *MemoryStore) Purge() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.purgeLocked(m.clock.Now())
}

// Len retorna quantos recibos estão guardados (incluindo expirados ainda não removidos)
func (m *MemoryStore) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.items)
}

// Close descarta todos os recibos
func (m *MemoryStore) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.items = make(map[string]memoryItem)
	return nil
}

func (m *MemoryStore) purgeLocked(now time.Time) int {
	removed := 0
	for id, item := range m.items {
		if !now.Before(item.expiresAt) {
			delete(m.items, id)
			removed++
		}
	}
	if removed > 0 && m.logger != nil {
		m.logger.Debug("Expired receipts purged", map[string]interface{}{
			"removed": removed,
		})
	}
	return removed
}
