package domain

import (
	"context"
	"time"
)

// Contratos da proteção do endpoint de login: limite de tentativas por cliente
// e limite de logins simultâneos (cada login ocupa uma espera na fila de resposta).

type ClientKey string

// Limiter decide se uma tentativa pode seguir agora.
// A implementação em infra usa token bucket (golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por cliente (IP, header, etc).
type LimiterStore interface {
	Get(ClientKey) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter vai no header Retry-After quando a tentativa é bloqueada.
	RetryAfter time.Duration
}

// SlotPool controla quantos logins podem aguardar o cadastro ao mesmo tempo.
// Acquire bloqueia até conseguir uma vaga ou até ctx cancelar.
// Quando ok=true, o chamador deve chamar release.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

type LoginOutcome string

const (
	LoginSucceeded LoginOutcome = "success"
	LoginRejected  LoginOutcome = "rejected"
	LoginThrottled LoginOutcome = "throttled"
	LoginFailed    LoginOutcome = "error"
)

// LoginAttempt é o registro de uma tentativa de login para estatísticas.
// Não carrega CPF nem senha.
type LoginAttempt struct {
	Key     ClientKey
	Outcome LoginOutcome
	At      time.Time
}

// LoginStats registra tentativas de login.
// Implementações devem ser seguras para uso concorrente.
type LoginStats interface {
	Record(ctx context.Context, at LoginAttempt) error
}
