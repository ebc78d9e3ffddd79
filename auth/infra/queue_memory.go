package infra

import (
	"context"
	"strconv"
	"sync"
	"time"

	"deliveryman-auth/auth/domain"
)

// MemoryQueue é uma fila em memória com a mesma semântica que o motor espera do
// SQS: entrega at-least-once, janela de visibilidade e handle por entrega.
//
// Útil para testes e para rodar o serviço localmente com o stub do cadastro no
// mesmo processo. Não persiste nada.
type MemoryQueue struct {
	mu         sync.Mutex
	queues     map[string][]*memMessage
	visibility time.Duration
	pollStep   time.Duration
	seq        uint64
	now        func() time.Time
}

type memMessage struct {
	id        string
	body      string
	attrs     map[string]string
	handle    string
	visibleAt time.Time
	receives  int
}

type MemoryQueueOption func(*MemoryQueue)

// WithMemoryVisibility define a janela de visibilidade (padrão 30s).
func WithMemoryVisibility(d time.Duration) MemoryQueueOption {
	return func(q *MemoryQueue) { q.visibility = d }
}

func NewMemoryQueue(opts ...MemoryQueueOption) *MemoryQueue {
	q := &MemoryQueue{
		queues:     make(map[string][]*memMessage),
		visibility: 30 * time.Second,
		pollStep:   5 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *MemoryQueue) Send(ctx context.Context, queueID, body string, attrs map[string]string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewTransportError("send", queueID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	msg := &memMessage{
		id:   "m-" + strconv.FormatUint(q.seq, 10),
		body: body,
	}
	if len(attrs) > 0 {
		msg.attrs = make(map[string]string, len(attrs))
		for k, v := range attrs {
			msg.attrs[k] = v
		}
	}
	q.queues[queueID] = append(q.queues[queueID], msg)
	return nil
}

// ReceiveBatch espera até `wait` por mensagens visíveis. Mensagens recebidas
// ficam invisíveis pela janela configurada e ganham um handle novo.
func (q *MemoryQueue) ReceiveBatch(ctx context.Context, queueID string, maxMessages int, wait time.Duration) ([]domain.Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	deadline := q.now().Add(wait)
	for {
		if msgs := q.take(queueID, maxMessages); len(msgs) > 0 {
			return msgs, nil
		}
		remaining := deadline.Sub(q.now())
		if remaining <= 0 {
			return nil, nil
		}
		t := time.NewTimer(min(q.pollStep, remaining))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, domain.NewTransportError("receive", queueID, ctx.Err())
		case <-t.C:
		}
	}
}

func (q *MemoryQueue) take(queueID string, maxMessages int) []domain.Message {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []domain.Message
	for _, m := range q.queues[queueID] {
		if len(out) == maxMessages {
			break
		}
		if now.Before(m.visibleAt) {
			continue
		}
		q.seq++
		m.receives++
		m.handle = m.id + "#" + strconv.FormatUint(q.seq, 10)
		m.visibleAt = now.Add(q.visibility)
		out = append(out, domain.Message{ID: m.id, Body: m.body, Handle: m.handle, Attributes: copyAttrs(m.attrs)})
	}
	return out
}

// Delete remove a mensagem cujo handle atual é `handle`. Handles antigos ou
// desconhecidos são ignorados.
func (q *MemoryQueue) Delete(ctx context.Context, queueID, handle string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewTransportError("delete", queueID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := q.queues[queueID]
	for i, m := range msgs {
		if m.handle != "" && m.handle == handle {
			q.queues[queueID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len conta as mensagens ainda na fila, visíveis ou em voo.
func (q *MemoryQueue) Len(queueID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queueID])
}

// Bodies devolve os corpos ainda na fila, na ordem de envio.
func (q *MemoryQueue) Bodies(queueID string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.queues[queueID]))
	for _, m := range q.queues[queueID] {
		out = append(out, m.body)
	}
	return out
}

func copyAttrs(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
