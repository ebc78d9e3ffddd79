package domain

import (
	"context"
	"errors"
	"time"
)

// Message é uma mensagem recebida de uma fila, junto com o handle de entrega.
//
// O Handle é opaco e vale apenas para a entrega atual: se a mensagem não for
// removida antes da janela de visibilidade expirar, ela volta para a fila e uma
// nova entrega terá outro handle.
type Message struct {
	ID         string
	Body       string
	Handle     string
	Attributes map[string]string
}

// Queue é a capacidade mínima de transporte usada pelo motor de request/reply
// e pelo emissor de eventos.
//
// Contrato:
//   - Send retorna quando o transporte aceitou a mensagem (sem garantia de ordem ou unicidade).
//   - ReceiveBatch devolve zero ou mais mensagens visíveis, esperando no máximo `wait`.
//   - Delete é idempotente: handle desconhecido ou expirado não é erro.
//
// Falhas nas três operações são *TransportError. A camada não faz retry.
type Queue interface {
	Send(ctx context.Context, queueID, body string, attrs map[string]string) error
	ReceiveBatch(ctx context.Context, queueID string, maxMessages int, wait time.Duration) ([]Message, error)
	Delete(ctx context.Context, queueID, handle string) error
}

var ErrTransport = errors.New("queue transport failure")

// TransportError descreve uma falha de send/receive/delete em uma fila.
// errors.Is(err, ErrTransport) é verdadeiro para qualquer TransportError.
type TransportError struct {
	Op    string
	Queue string
	Err   error
}

func NewTransportError(op, queue string, err error) *TransportError {
	return &TransportError{Op: op, Queue: queue, Err: err}
}

func (e *TransportError) Error() string {
	msg := "queue " + e.Op
	if e.Queue != "" {
		msg += " " + e.Queue
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
