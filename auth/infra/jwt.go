package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"deliveryman-auth/auth/domain"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims é o formato do payload: {sub, cpf, role, iat, exp}.
type accessClaims struct {
	jwt.RegisteredClaims
	CPF  string      `json:"cpf"`
	Role domain.Role `json:"role"`
}

// JWTIssuer assina e valida tokens HS256.
type JWTIssuer struct {
	Now func() time.Time
}

func (j JWTIssuer) now() time.Time {
	if j.Now == nil {
		return time.Now()
	}
	return j.Now()
}

func (j JWTIssuer) Sign(c domain.Claims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	issued := c.IssuedAt
	if issued.IsZero() {
		issued = j.now()
	}
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
		CPF:  c.CPF,
		Role: c.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse valida assinatura, algoritmo e expiração. Qualquer falha vira
// domain.ErrInvalidToken (com a causa encadeada).
func (j JWTIssuer) Parse(token string, secret []byte) (domain.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Claims{}, domain.ErrInvalidToken
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if parsed.Subject == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}

	out := domain.Claims{Subject: parsed.Subject, CPF: parsed.CPF, Role: parsed.Role}
	if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		out.ExpiresAt = parsed.ExpiresAt.Time
	}
	return out, nil
}
