package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deliveryman-auth/auth/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("deliveryman-auth/auth/application")

// RequestReplyOptions são os parâmetros do motor. Zeros assumem os padrões.
type RequestReplyOptions struct {
	RequestQueue  string
	ResponseQueue string

	// Timeout é o prazo padrão de Call quando o chamador passa 0.
	Timeout time.Duration
	// PollWait é a espera máxima de cada ReceiveBatch (long polling).
	// Mantenha curto para o laço respeitar o prazo total.
	PollWait time.Duration
	// PollInterval é a pausa entre iterações sem resposta.
	PollInterval time.Duration
	MaxMessages  int
}

const (
	DefaultCallTimeout  = 10 * time.Second
	DefaultPollWait     = 1 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxMessages  = 10
)

func (o RequestReplyOptions) withDefaults() RequestReplyOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultCallTimeout
	}
	if o.PollWait <= 0 {
		o.PollWait = DefaultPollWait
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = DefaultMaxMessages
	}
	return o
}

// RequestReply envia uma requisição com correlationId na fila de requisição e
// espera, na fila de resposta, a mensagem com o mesmo correlationId.
//
// Várias chamadas podem compartilhar o mesmo par de filas. Cada Call guarda seu
// próprio estado de espera em variáveis locais; o único estado compartilhado é o
// transporte, que não tem estado. Mensagens de outras chamadas e mensagens
// ilegíveis nunca são removidas: a igualdade de correlationId seguida da remoção
// imediata é o que impede duas chamadas de consumirem a mesma mensagem.
type RequestReply struct {
	queue  domain.Queue
	ids    domain.IDGenerator
	opts   RequestReplyOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewRequestReply(queue domain.Queue, ids domain.IDGenerator, opts RequestReplyOptions, logger *slog.Logger) *RequestReply {
	return &RequestReply{
		queue:  queue,
		ids:    ids,
		opts:   opts.withDefaults(),
		logger: resolveLogger(logger),
		now:    time.Now,
	}
}

// Call busca o entregador pelo CPF (já normalizado) e bloqueia até a resposta
// correlacionada ou até o prazo.
//
// Retornos:
//   - LookupReply com Found=true/false quando o cadastro respondeu.
//   - domain.ErrTimedOut quando o prazo acabou sem resposta (não é falha).
//   - erro que satisfaz errors.Is(err, domain.ErrTransport) em falha de fila.
//   - domain.ErrMalformedMessage quando a resposta é desta chamada mas está corrompida
//     (a mensagem é removida mesmo assim).
//   - ctx.Err() se o chamador cancelar antes do prazo.
func (e *RequestReply) Call(ctx context.Context, cpf string, timeout time.Duration) (domain.LookupReply, error) {
	if timeout <= 0 {
		timeout = e.opts.Timeout
	}
	correlationID := e.ids.NewID()

	ctx, span := tracer.Start(ctx, "deliveryman.lookup")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.message.conversation_id", correlationID),
		attribute.String("messaging.destination.name", e.opts.RequestQueue),
	)

	reply, err := e.call(ctx, correlationID, cpf, timeout)
	if err != nil && !errors.Is(err, domain.ErrTimedOut) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Bool("deliveryman.found", reply.Found))
	return reply, err
}

func (e *RequestReply) call(ctx context.Context, correlationID, cpf string, timeout time.Duration) (domain.LookupReply, error) {
	body, err := json.Marshal(domain.LookupRequest{
		Action:        domain.ActionFindDeliverymanByCPF,
		CorrelationID: correlationID,
		CPF:           domain.FormatCPF(cpf),
	})
	if err != nil {
		return domain.LookupReply{}, fmt.Errorf("encode lookup request: %w", err)
	}

	// Falha no envio: nenhuma espera é criada.
	if err := e.queue.Send(ctx, e.opts.RequestQueue, string(body), nil); err != nil {
		return domain.LookupReply{}, fmt.Errorf("send lookup request: %w", err)
	}

	deadline := e.now().Add(timeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	log := e.logger.With("correlation_id", correlationID)
	log.Debug("lookup request sent", "queue", e.opts.RequestQueue, "timeout", timeout)

	for {
		remaining := deadline.Sub(e.now())
		if remaining <= 0 {
			log.Info("lookup timed out")
			return domain.LookupReply{}, domain.ErrTimedOut
		}

		wait := min(e.opts.PollWait, remaining)
		msgs, err := e.queue.ReceiveBatch(waitCtx, e.opts.ResponseQueue, e.opts.MaxMessages, wait)
		if err != nil {
			if waitCtx.Err() != nil {
				return domain.LookupReply{}, e.expired(ctx, log)
			}
			return domain.LookupReply{}, fmt.Errorf("receive lookup response: %w", err)
		}

		for _, msg := range msgs {
			resp, perr := decodeResponse(msg.Body)
			if resp.CorrelationID == "" {
				// Sem correlationId recuperável: não é desta chamada e também não
				// pode ser descartada, pode ser a resposta de outra espera.
				log.Warn("ignoring unattributable response", "message_id", msg.ID, "error", perr)
				continue
			}
			if resp.CorrelationID != correlationID {
				continue
			}

			// Usa ctx (e não waitCtx): a mensagem já é nossa e precisa sair da fila
			// mesmo que o prazo vença neste instante.
			if err := e.queue.Delete(ctx, e.opts.ResponseQueue, msg.Handle); err != nil {
				return domain.LookupReply{}, fmt.Errorf("delete lookup response: %w", err)
			}
			if perr != nil {
				log.Warn("discarded malformed response addressed to this call", "message_id", msg.ID, "error", perr)
				return domain.LookupReply{}, perr
			}
			reply := toReply(resp, correlationID)
			if reply.Found {
				reply.Record, perr = decodeRecord(resp.Record)
				if perr != nil {
					log.Warn("discarded malformed response addressed to this call", "message_id", msg.ID, "error", perr)
					return domain.LookupReply{}, perr
				}
			}
			log.Debug("lookup response matched", "outcome", resp.Outcome)
			return reply, nil
		}

		pause := time.NewTimer(min(e.opts.PollInterval, max(deadline.Sub(e.now()), 0)))
		select {
		case <-waitCtx.Done():
			pause.Stop()
			return domain.LookupReply{}, e.expired(ctx, log)
		case <-pause.C:
		}
	}
}

// expired decide entre cancelamento do chamador e fim do prazo da chamada.
func (e *RequestReply) expired(ctx context.Context, log *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		log.Info("lookup abandoned by caller", "error", err)
		return err
	}
	log.Info("lookup timed out")
	return domain.ErrTimedOut
}

// decodeResponse devolve o que conseguiu ler mesmo em caso de erro, para que
// o chamador saiba se a mensagem corrompida tem dono.
func decodeResponse(body string) (domain.LookupResponse, error) {
	var resp domain.LookupResponse
	if body == "" {
		return resp, fmt.Errorf("%w: empty body", domain.ErrMalformedMessage)
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		// Tentativa de recuperar apenas o correlationId quando o resto está ruim
		// (ex: outcome com tipo errado).
		var head struct {
			CorrelationID string `json:"correlationId"`
		}
		if json.Unmarshal([]byte(body), &head) == nil {
			return domain.LookupResponse{CorrelationID: head.CorrelationID}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
		}
		return domain.LookupResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	switch resp.Outcome {
	case domain.OutcomeFound, domain.OutcomeNotFound:
		return resp, nil
	default:
		return resp, fmt.Errorf("%w: unknown outcome %q", domain.ErrMalformedMessage, resp.Outcome)
	}
}

func decodeRecord(raw json.RawMessage) (*domain.Deliveryman, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: found without record", domain.ErrMalformedMessage)
	}
	var rec domain.Deliveryman
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: record: %v", domain.ErrMalformedMessage, err)
	}
	return &rec, nil
}

func toReply(resp domain.LookupResponse, correlationID string) domain.LookupReply {
	return domain.LookupReply{
		CorrelationID: correlationID,
		Found:         resp.Outcome == domain.OutcomeFound,
	}
}
