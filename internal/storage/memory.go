package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mayfly-forms/internal/domain"
)

// MemoryStorage implementa domain.RateLimiterStorage em memória.
// Os contadores são locais à instância: não há coordenação entre réplicas.
type MemoryStorage struct {
	entries map[string]*identityEntry
	mutex   sync.RWMutex
	logger  domain.Logger
}

// identityEntry guarda as janelas de uma identidade; mu serializa as admissões dela
type identityEntry struct {
	mu       sync.Mutex
	windows  map[string]*windowState
	lastSeen time.Time
	maxSize  time.Duration
	evicted  bool
}

type windowState struct {
	start time.Time
	count int
}

// NewMemoryStorage cria uma nova instância do MemoryStorage
func NewMemoryStorage(logger domain.Logger) *MemoryStorage {
	storage := &MemoryStorage{
		entries: make(map[string]*identityEntry),
		logger:  logger,
	}

	if logger != nil {
		logger.Info("Memory storage initialized", nil)
	}

	return storage
}

// Admit aplica as janelas fixas à chave no instante now.
// Incrementa todas as janelas, desfaz o incremento apenas nas que estouraram o limite
// e nega se alguma estourou.
// RetryAfter é o reset mais tardio entre as janelas estouradas, não o mais próximo:
// antes disso o cliente continuaria negado por alguma delas.
func (m *MemoryStorage) Admit(ctx context.Context, key string, windows []domain.RateWindow, now time.Time) (*domain.RateLimitResult, error) {
	start := time.Now()

	if len(windows) == 0 {
		return nil, domain.ErrNoWindows
	}
	if err := ctx.Err(); err != nil {
		m.logStorageOperation("ADMIT", key, false, time.Since(start).Seconds()*1000, err)
		return nil, fmt.Errorf("admit %s: %w", key, err)
	}

	entry := m.lockEntry(key, windows)
	defer entry.mu.Unlock()

	now = entry.clamp(now)

	allowed := true
	var retryAfter time.Duration
	counters := make([]domain.WindowCounter, 0, len(windows))

	for _, w := range windows {
		state := entry.window(w.Name, now)
		state.roll(w.Size, now)
		state.count++

		if state.count > w.Limit {
			state.count--
			allowed = false
			if wait := state.start.Add(w.Size).Sub(now); wait > retryAfter {
				retryAfter = wait
			}
		}

		counters = append(counters, counterOf(w, state))
	}

	if !allowed && retryAfter <= 0 {
		retryAfter = time.Second
	}

	m.logStorageOperation("ADMIT", key, true, time.Since(start).Seconds()*1000, nil)

	result := &domain.RateLimitResult{Allowed: allowed, Windows: counters}
	if !allowed {
		result.RetryAfter = retryAfter
	}
	return result, nil
}

// Status retorna os contadores de uma chave sem consumir capacidade
func (m *MemoryStorage) Status(ctx context.Context, key string, windows []domain.RateWindow, now time.Time) (*domain.RateLimitStatus, error) {
	start := time.Now()

	m.mutex.RLock()
	entry, exists := m.entries[key]
	m.mutex.RUnlock()

	status := &domain.RateLimitStatus{Identity: key, Tracked: exists}
	if !exists {
		for _, w := range windows {
			status.Windows = append(status.Windows, counterOf(w, &windowState{start: now}))
		}
		m.logStorageOperation("STATUS", key, true, time.Since(start).Seconds()*1000, nil)
		return status, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if now.Before(entry.lastSeen) {
		now = entry.lastSeen
	}
	for _, w := range windows {
		snapshot := windowState{start: now}
		if state, ok := entry.windows[w.Name]; ok {
			snapshot = *state
			snapshot.roll(w.Size, now)
		}
		status.Windows = append(status.Windows, counterOf(w, &snapshot))
	}

	m.logStorageOperation("STATUS", key, true, time.Since(start).Seconds()*1000, nil)
	return status, nil
}

// Reset limpa os dados de uma chave
func (m *MemoryStorage) Reset(ctx context.Context, key string) error {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if entry, exists := m.entries[key]; exists {
		entry.mu.Lock()
		entry.evicted = true
		entry.mu.Unlock()
		delete(m.entries, key)
	}

	m.logStorageOperation("RESET", key, true, time.Since(start).Seconds()*1000, nil)
	return nil
}

// Close limpa todos os dados
func (m *MemoryStorage) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, entry := range m.entries {
		entry.mu.Lock()
		entry.evicted = true
		entry.mu.Unlock()
	}
	m.entries = make(map[string]*identityEntry)

	if m.logger != nil {
		m.logger.Info("Memory storage closed", nil)
	}
	return nil
}

// Len retorna quantas identidades estão sendo rastreadas
func (m *MemoryStorage) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}

// StartJanitor remove periodicamente identidades cujas janelas já expiraram.
// Para quando o contexto é cancelado. onSweep, se não for nil, recebe o resultado de cada varredura.
func (m *MemoryStorage) StartJanitor(ctx context.Context, every time.Duration, clock domain.Clock, onSweep func(removed, tracked int)) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := m.Cleanup(clock.Now())
			if onSweep != nil {
				onSweep(removed, m.Len())
			}
		}
	}
}

// Cleanup remove identidades inativas há mais tempo que sua maior janela
func (m *MemoryStorage) Cleanup(now time.Time) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := 0
	for key, entry := range m.entries {
		entry.mu.Lock()
		if now.Sub(entry.lastSeen) >= entry.maxSize {
			entry.evicted = true
			delete(m.entries, key)
			removed++
		}
		entry.mu.Unlock()
	}

	if removed > 0 && m.logger != nil {
		m.logger.Debug("Memory storage cleanup completed", map[string]interface{}{
			"removed_entries": removed,
			"tracked_entries": len(m.entries),
		})
	}
	return removed
}

// lockEntry obtém (ou cria) a entrada da chave e retorna com o lock da entrada adquirido.
// Uma entrada removida pelo Cleanup entre o lookup e o lock é descartada e buscada de novo.
func (m *MemoryStorage) lockEntry(key string, windows []domain.RateWindow) *identityEntry {
	for {
		m.mutex.RLock()
		entry, exists := m.entries[key]
		m.mutex.RUnlock()

		if !exists {
			m.mutex.Lock()
			entry, exists = m.entries[key]
			if !exists {
				entry = &identityEntry{windows: make(map[string]*windowState, len(windows))}
				m.entries[key] = entry
			}
			m.mutex.Unlock()
		}

		entry.mu.Lock()
		if entry.evicted {
			entry.mu.Unlock()
			continue
		}
		for _, w := range windows {
			if w.Size > entry.maxSize {
				entry.maxSize = w.Size
			}
		}
		return entry
	}
}

// clamp impede que um relógio voltando no tempo mova as janelas para trás
func (e *identityEntry) clamp(now time.Time) time.Time {
	if now.Before(e.lastSeen) {
		return e.lastSeen
	}
	e.lastSeen = now
	return now
}

func (e *identityEntry) window(name string, now time.Time) *windowState {
	state, ok := e.windows[name]
	if !ok {
		state = &windowState{start: now}
		e.windows[name] = state
	}
	return state
}

// roll reinicia a janela quando now passou de start+size; start nunca retrocede
func (s *windowState) roll(size time.Duration, now time.Time) {
	if !now.Before(s.start.Add(size)) {
		s.count = 0
		s.start = now
	}
}

func counterOf(w domain.RateWindow, state *windowState) domain.WindowCounter {
	remaining := w.Limit - state.count
	if remaining < 0 {
		remaining = 0
	}
	return domain.WindowCounter{
		Name:      w.Name,
		Count:     state.count,
		Limit:     w.Limit,
		Remaining: remaining,
		Start:     state.start,
		ResetAt:   state.start.Add(w.Size),
	}
}

// logStorageOperation registra operações de storage
func (m *MemoryStorage) logStorageOperation(operation, key string, success bool, latency float64, err error) {
	if m.logger == nil {
		return
	}

	if success {
		m.logger.Debug("Storage operation completed", map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	} else {
		m.logger.Error("Storage operation failed", err, map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	}
}
