package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deliveryman-auth/auth/domain"
)

// Responder atende FIND_DELIVERYMAN_BY_CPF.
//
// Requisições ilegíveis ou com outra action são removidas sem resposta,
// para não voltarem a cada janela de visibilidade.
type Responder struct {
	Queue         domain.Queue
	RequestQueue  string
	ResponseQueue string
	Directory     *Directory
	PollWait      time.Duration
	MaxMessages   int
	Logger        *slog.Logger
}

func (r *Responder) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Run atende até ctx cancelar. Erros de transporte são logados e o laço segue
// depois de uma pausa.
func (r *Responder) Run(ctx context.Context) error {
	if r.Queue == nil || r.Directory == nil {
		return errors.New("stub responder needs a queue and a directory")
	}
	r.logger().Info("deliveryman stub listening", "request_queue", r.RequestQueue, "response_queue", r.ResponseQueue, "records", r.Directory.Len())

	for {
		if _, err := r.HandleOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger().Warn("stub poll failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// HandleOnce faz uma leitura da fila de requisição e responde o que vier.
// Devolve quantas respostas foram enviadas.
func (r *Responder) HandleOnce(ctx context.Context) (int, error) {
	maxMessages := r.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 10
	}
	msgs, err := r.Queue.ReceiveBatch(ctx, r.RequestQueue, maxMessages, r.PollWait)
	if err != nil {
		return 0, err
	}

	replied := 0
	for _, m := range msgs {
		body, ok := r.reply(m)
		if ok {
			if err := r.Queue.Send(ctx, r.ResponseQueue, body, nil); err != nil {
				// a requisição fica na fila e volta depois da visibilidade
				return replied, err
			}
			replied++
		}
		if err := r.Queue.Delete(ctx, r.RequestQueue, m.Handle); err != nil {
			return replied, err
		}
	}
	return replied, nil
}

func (r *Responder) reply(m domain.Message) (string, bool) {
	var req domain.LookupRequest
	if err := json.Unmarshal([]byte(m.Body), &req); err != nil || req.CorrelationID == "" {
		r.logger().Warn("stub dropping unreadable request", "message_id", m.ID)
		return "", false
	}
	if req.Action != domain.ActionFindDeliverymanByCPF {
		r.logger().Warn("stub dropping unknown action", "message_id", m.ID, "action", req.Action)
		return "", false
	}

	resp := domain.LookupResponse{CorrelationID: req.CorrelationID, Outcome: domain.OutcomeNotFound}
	if rec, found := r.Directory.Find(req.CPF); found {
		raw, err := json.Marshal(rec)
		if err != nil {
			r.logger().Error("stub cannot encode record", "error", err)
			return "", false
		}
		resp.Outcome, resp.Record = domain.OutcomeFound, raw
	}

	out, err := json.Marshal(resp)
	if err != nil {
		r.logger().Error("stub cannot encode response", "error", fmt.Errorf("marshal: %w", err))
		return "", false
	}
	r.logger().Debug("stub replied", "correlation_id", req.CorrelationID, "outcome", resp.Outcome)
	return string(out), true
}
