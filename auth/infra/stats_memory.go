package infra

import (
	"context"
	"sync"

	"deliveryman-auth/auth/domain"
)

// LoginCounters soma tentativas por desfecho.
type LoginCounters struct {
	Succeeded int64
	Rejected  int64
	Throttled int64
	Failed    int64
}

func (c *LoginCounters) add(o domain.LoginOutcome) {
	switch o {
	case domain.LoginSucceeded:
		c.Succeeded++
	case domain.LoginRejected:
		c.Rejected++
	case domain.LoginThrottled:
		c.Throttled++
	default:
		c.Failed++
	}
}

// MemoryLoginStats guarda contadores de login em memória.
// Útil para testes e desenvolvimento; não expira nada.
type MemoryLoginStats struct {
	mu       sync.Mutex
	total    LoginCounters
	byClient map[domain.ClientKey]LoginCounters

	trackClients bool
}

type MemoryStatsOption func(*MemoryLoginStats)

// WithTrackClients liga a contagem por cliente (IP/header).
func WithTrackClients(track bool) MemoryStatsOption {
	return func(s *MemoryLoginStats) { s.trackClients = track }
}

func NewMemoryLoginStats(opts ...MemoryStatsOption) *MemoryLoginStats {
	s := &MemoryLoginStats{byClient: make(map[domain.ClientKey]LoginCounters)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryLoginStats) Record(_ context.Context, at domain.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(at.Outcome)
	if s.trackClients && at.Key != "" {
		c := s.byClient[at.Key]
		c.add(at.Outcome)
		s.byClient[at.Key] = c
	}
	return nil
}

func (s *MemoryLoginStats) Total() LoginCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryLoginStats) ByClient() map[domain.ClientKey]LoginCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.ClientKey]LoginCounters, len(s.byClient))
	for k, v := range s.byClient {
		out[k] = v
	}
	return out
}
