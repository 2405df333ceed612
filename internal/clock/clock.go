// Package clock fornece fontes de tempo injetáveis para o rate limiter.
package clock

import (
	"sync"
	"time"
)

// System usa o relógio do processo (time.Now carrega leitura monotônica)
type System struct{}

// Now retorna o instante atual
func (System) Now() time.Time {
	return time.Now()
}

// Fake é um relógio controlado manualmente, usado nos testes
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake cria um relógio parado em start
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now retorna o instante atual do relógio falso
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance move o relógio; valores negativos simulam um salto para trás
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set posiciona o relógio em um instante específico
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
