package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deliveryman-auth/auth/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DeliverymanLookup é o que o Authenticator precisa do motor de request/reply.
type DeliverymanLookup interface {
	Call(ctx context.Context, cpf string, timeout time.Duration) (domain.LookupReply, error)
}

const DefaultTokenTTL = 24 * time.Hour

type AuthenticatorConfig struct {
	Secret []byte
	// LookupTimeout é o prazo dado ao cadastro para responder.
	LookupTimeout time.Duration
	TokenTTL      time.Duration
}

// Authenticator executa o login em uma única passada, sem retry:
//
//	Start -> AwaitingRecord -> Verifying -> Issuing -> Done
//
// Qualquer rejeição de autenticação vira domain.ErrInvalidCredentials.
// Erros de transporte e de mensagem corrompida sobem como vieram.
type Authenticator struct {
	lookup   DeliverymanLookup
	verifier domain.PasswordVerifier
	tokens   domain.TokenIssuer
	events   domain.EventPublisher
	cfg      AuthenticatorConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthenticator(
	lookup DeliverymanLookup,
	verifier domain.PasswordVerifier,
	tokens domain.TokenIssuer,
	events domain.EventPublisher,
	cfg AuthenticatorConfig,
	logger *slog.Logger,
) *Authenticator {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultCallTimeout
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &Authenticator{
		lookup:   lookup,
		verifier: verifier,
		tokens:   tokens,
		events:   events,
		cfg:      cfg,
		logger:   resolveLogger(logger),
		now:      time.Now,
	}
}

func (a *Authenticator) Login(ctx context.Context, cpf, password string) (domain.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	res, err := a.login(ctx, cpf, password)
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("auth.outcome", string(domain.LoginSucceeded)))
	case errors.Is(err, domain.ErrInvalidCredentials):
		span.SetAttributes(attribute.String("auth.outcome", string(domain.LoginRejected)))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (a *Authenticator) login(ctx context.Context, cpf, password string) (domain.LoginResult, error) {
	digits, err := domain.NormalizeCPF(cpf)
	if err != nil || password == "" {
		return domain.LoginResult{}, domain.ErrInvalidCredentials
	}

	// AwaitingRecord
	reply, err := a.lookup.Call(ctx, digits, a.cfg.LookupTimeout)
	switch {
	case errors.Is(err, domain.ErrTimedOut):
		a.reject(ctx, "lookup timed out")
		return domain.LoginResult{}, domain.ErrInvalidCredentials
	case err != nil:
		return domain.LoginResult{}, fmt.Errorf("lookup deliveryman: %w", err)
	}
	if !reply.Found || reply.Record == nil {
		a.reject(ctx, "not found")
		return domain.LoginResult{}, domain.ErrInvalidCredentials
	}
	rec := reply.Record
	if !rec.Active {
		a.reject(ctx, "inactive")
		return domain.LoginResult{}, domain.ErrInvalidCredentials
	}
	if rec.PasswordHash == "" {
		a.reject(ctx, "missing credential hash")
		return domain.LoginResult{}, domain.ErrInvalidCredentials
	}

	// Verifying
	if !a.verifier.Compare(password, rec.PasswordHash) {
		a.reject(ctx, "password mismatch")
		return domain.LoginResult{}, domain.ErrInvalidCredentials
	}

	// Issuing
	subject := domain.Subject{ID: rec.ID, CPF: rec.CPF, Role: domain.RoleDeliveryman}
	if subject.CPF == "" {
		subject.CPF = domain.FormatCPF(digits)
	}
	now := a.now()
	token, err := a.tokens.Sign(domain.Claims{
		Subject:  subject.ID,
		CPF:      subject.CPF,
		Role:     subject.Role,
		IssuedAt: now,
	}, a.cfg.Secret, a.cfg.TokenTTL)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("sign token: %w", err)
	}

	// Done: o evento é fire-and-forget. Uma falha aqui não desfaz o login já aprovado.
	ev := domain.AuthEvent{
		EventType: domain.EventUserAuthenticated,
		UserID:    subject.ID,
		CPF:       subject.CPF,
		Role:      subject.Role,
		Timestamp: domain.ISOTimestamp(now),
	}
	if err := a.events.Publish(ctx, ev); err != nil {
		a.logger.WarnContext(ctx, "auth event not published", "user_id", subject.ID, "error", err)
	}

	a.logger.InfoContext(ctx, "deliveryman authenticated", "user_id", subject.ID)
	return domain.LoginResult{Token: token, Subject: subject}, nil
}

// reject registra o motivo apenas no log interno. O chamador recebe sempre a
// mesma rejeição.
func (a *Authenticator) reject(ctx context.Context, reason string) {
	a.logger.InfoContext(ctx, "login rejected", "reason", reason)
}
