package infra

import (
	"context"
	"sync"
	"time"

	"deliveryman-auth/auth/domain"

	"golang.org/x/time/rate"
)

// LimiterStore guarda um token bucket (x/time/rate) por cliente que tenta logar.
// Clientes sem tentativas por idleTTL são esquecidos pela limpeza periódica.
type LimiterStore struct {
	mu           sync.Mutex
	clients      map[domain.ClientKey]*clientLimiter
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LimiterOption func(*LimiterStore)

func WithIdleTTL(d time.Duration) LimiterOption {
	return func(s *LimiterStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LimiterOption {
	return func(s *LimiterStore) { s.cleanupEvery = d }
}

// NewLimiterStore cria o store com `rps` tentativas por segundo e rajada `burst`
// por cliente.
func NewLimiterStore(rps float64, burst int, opts ...LimiterOption) *LimiterStore {
	s := &LimiterStore{
		clients:      make(map[domain.ClientKey]*clientLimiter),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LimiterStore) RPS() float64 { return float64(s.rps) }
func (s *LimiterStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *LimiterStore) Get(key domain.ClientKey) domain.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[key]; ok {
		c.lastSeen = now
		return c.lim
	}
	lim := rate.NewLimiter(s.rps, s.burst)
	s.clients[key] = &clientLimiter{lim: lim, lastSeen: now}
	return lim
}

// Len devolve quantos clientes estão sendo acompanhados.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *LimiterStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, c := range s.clients {
		if c.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// StartJanitor inicia uma goroutine que esquece clientes inativos periodicamente.
// Pare cancelando o contexto.
func (s *LimiterStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
