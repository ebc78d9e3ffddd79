package domain

import "errors"

var (
	// ErrTimedOut indica que nenhuma resposta com o correlationId da chamada
	// chegou antes do prazo. Não é falha de transporte: o chamador decide o que fazer.
	ErrTimedOut = errors.New("no correlated reply before deadline")

	// ErrMalformedMessage indica um corpo de resposta que não pôde ser interpretado.
	ErrMalformedMessage = errors.New("malformed queue message")

	// ErrInvalidCredentials é a rejeição uniforme do login. Não revela se o CPF
	// existe, se está inativo, se a senha errou ou se o cadastro não respondeu.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidCPF   = errors.New("cpf must have 11 digits")
	ErrInvalidToken = errors.New("invalid token")
)
