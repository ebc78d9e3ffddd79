package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"deliveryman-auth/auth/domain"
)

// EventEmitter publica eventos de autenticação numa fila dedicada.
// Um Send por evento, sem correlação e sem resposta.
type EventEmitter struct {
	queue   domain.Queue
	queueID string
	logger  *slog.Logger
}

func NewEventEmitter(queue domain.Queue, queueID string, logger *slog.Logger) *EventEmitter {
	return &EventEmitter{queue: queue, queueID: queueID, logger: resolveLogger(logger)}
}

// Publish implementa domain.EventPublisher. Erros de transporte voltam para o chamador.
func (e *EventEmitter) Publish(ctx context.Context, ev domain.AuthEvent) error {
	if ev.EventType == "" {
		return errors.New("auth event without eventType")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode auth event: %w", err)
	}
	attrs := map[string]string{"eventType": string(ev.EventType)}
	if err := e.queue.Send(ctx, e.queueID, string(body), attrs); err != nil {
		return fmt.Errorf("publish auth event: %w", err)
	}
	e.logger.Debug("auth event published", "event_type", ev.EventType, "user_id", ev.UserID)
	return nil
}
