package application

import (
	"context"
	"time"

	"deliveryman-auth/auth/domain"
)

// Throttle concentra a regra de limite de tentativas de login por cliente.
//
// Não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Throttle struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (t Throttle) Decide(key domain.ClientKey) domain.Decision {
	if t.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if t.RetryAfter <= 0 {
		t.RetryAfter = 1 * time.Second
	}

	lim := t.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: t.RetryAfter}
}

// Admission limita quantos logins aguardam o cadastro ao mesmo tempo.
type Admission struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Se `AcquireTimeout <= 0`, espera até ctx cancelar.
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (a Admission) Acquire(ctx context.Context) (func(), bool) {
	if a.Pool == nil {
		return func() {}, true
	}
	if a.AcquireTimeout <= 0 {
		return a.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, a.AcquireTimeout)
	defer cancel()
	return a.Pool.Acquire(acqCtx)
}
