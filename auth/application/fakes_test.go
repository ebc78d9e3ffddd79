package application

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deliveryman-auth/auth/domain"
	"deliveryman-auth/auth/infra"
)

const (
	reqQ   = "deliveryman-requests"
	respQ  = "deliveryman-responses"
	eventQ = "auth-events"
)

func fastOptions() RequestReplyOptions {
	return RequestReplyOptions{
		RequestQueue:  reqQ,
		ResponseQueue: respQ,
		Timeout:       500 * time.Millisecond,
		PollWait:      10 * time.Millisecond,
		PollInterval:  2 * time.Millisecond,
	}
}

type seqIDs struct {
	prefix string
	n      atomic.Int64
}

func (s *seqIDs) NewID() string {
	return s.prefix + "-" + strconv.FormatInt(s.n.Add(1), 10)
}

// scriptedQueue injeta falhas em operações específicas e conta as chamadas.
type scriptedQueue struct {
	mu         sync.Mutex
	sendErr    error
	receiveErr error
	deleteErr  error
	batches    [][]domain.Message
	sent       []string
	receives   int
	deleted    []string
}

func (q *scriptedQueue) Send(_ context.Context, queueID, body string, _ map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return domain.NewTransportError("send", queueID, q.sendErr)
	}
	q.sent = append(q.sent, body)
	return nil
}

func (q *scriptedQueue) ReceiveBatch(_ context.Context, queueID string, _ int, _ time.Duration) ([]domain.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.receives++
	if q.receiveErr != nil {
		return nil, domain.NewTransportError("receive", queueID, q.receiveErr)
	}
	if len(q.batches) == 0 {
		return nil, nil
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b, nil
}

func (q *scriptedQueue) Delete(_ context.Context, queueID, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleteErr != nil {
		return domain.NewTransportError("delete", queueID, q.deleteErr)
	}
	q.deleted = append(q.deleted, handle)
	return nil
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func foundBody(t *testing.T, correlationID string, rec domain.Deliveryman) string {
	t.Helper()
	return mustJSON(t, map[string]any{
		"correlationId": correlationID,
		"outcome":       domain.OutcomeFound,
		"record":        rec,
	})
}

func notFoundBody(t *testing.T, correlationID string) string {
	t.Helper()
	return mustJSON(t, map[string]any{
		"correlationId": correlationID,
		"outcome":       domain.OutcomeNotFound,
	})
}

// respond atende a fila de requisição até ctx cancelar, usando lookup para
// montar a resposta. Respostas desconhecidas viram not_found.
func respond(ctx context.Context, t *testing.T, q domain.Queue, lookup func(cpf string) (domain.Deliveryman, bool)) {
	t.Helper()
	for ctx.Err() == nil {
		msgs, err := q.ReceiveBatch(ctx, reqQ, 10, 5*time.Millisecond)
		if err != nil {
			return
		}
		for _, m := range msgs {
			var req domain.LookupRequest
			if err := json.Unmarshal([]byte(m.Body), &req); err != nil {
				t.Errorf("responder: bad request %q: %v", m.Body, err)
				continue
			}
			body := notFoundBody(t, req.CorrelationID)
			if rec, ok := lookup(req.CPF); ok {
				body = foundBody(t, req.CorrelationID, rec)
			}
			if err := q.Send(ctx, respQ, body, nil); err != nil {
				return
			}
			_ = q.Delete(ctx, reqQ, m.Handle)
		}
	}
}

var errBoom = errors.New("boom")

var _ domain.Queue = (*infra.MemoryQueue)(nil)

func startResponder(t *testing.T, q domain.Queue, lookup func(cpf string) (domain.Deliveryman, bool)) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		respond(ctx, t, q, lookup)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}
