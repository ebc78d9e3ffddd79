package domain

import (
	"context"
	"time"
)

// PasswordVerifier compara a senha em texto puro com o hash armazenado.
type PasswordVerifier interface {
	Compare(plaintext, hash string) bool
}

// PasswordHasher gera hashes compatíveis com PasswordVerifier.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// TokenIssuer assina claims com o segredo configurado e validade ttl.
type TokenIssuer interface {
	Sign(claims Claims, secret []byte, ttl time.Duration) (string, error)
}

// TokenParser valida a assinatura e a expiração de um token emitido por TokenIssuer.
type TokenParser interface {
	Parse(token string, secret []byte) (Claims, error)
}

// IDGenerator gera correlationIds. Nunca deve repetir um valor dentro da janela
// operacional do sistema.
type IDGenerator interface {
	NewID() string
}

// EventPublisher publica eventos de autenticação sem esperar resposta.
type EventPublisher interface {
	Publish(ctx context.Context, ev AuthEvent) error
}
