package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"deliveryman-auth/auth/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implementa domain.Queue em Redis com semântica de SQS
// (visibilidade + handle por entrega), para ambientes sem AWS.
//
// Layout por fila (prefixo padrão "queue"):
//
//	<prefix>:<fila>:ready     LIST  ids prontos (LPUSH no envio, RPOP no recebimento)
//	<prefix>:<fila>:inflight  ZSET  id -> fim da visibilidade (ms)
//	<prefix>:<fila>:seq       contador dos handles
//	<prefix>:<fila>:msg:<id>  HASH  body, attrs, handle
//
// Recebimento e remoção rodam em scripts Lua para serem atômicos.
type RedisQueue struct {
	rdb        redis.UniversalClient
	prefix     string
	visibility time.Duration
	pollStep   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

type RedisQueueOption func(*RedisQueue)

func WithRedisQueuePrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) { q.prefix = strings.Trim(prefix, ":") }
}

// WithRedisVisibility define a janela de visibilidade (padrão 30s).
func WithRedisVisibility(d time.Duration) RedisQueueOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.visibility = d
		}
	}
}

// WithRedisPollStep define o intervalo entre consultas durante o long polling.
func WithRedisPollStep(d time.Duration) RedisQueueOption {
	return func(q *RedisQueue) { q.pollStep = d }
}

func WithRedisLogger(logger *slog.Logger) RedisQueueOption {
	return func(q *RedisQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func NewRedisQueue(rdb redis.UniversalClient, opts ...RedisQueueOption) *RedisQueue {
	q := &RedisQueue{
		rdb:        rdb,
		prefix:     "queue",
		visibility: 30 * time.Second,
		pollStep:   50 * time.Millisecond,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) key(queueID, part string) string {
	return q.prefix + ":" + queueID + ":" + part
}

func (q *RedisQueue) msgPrefix(queueID string) string {
	return q.key(queueID, "msg:")
}

func (q *RedisQueue) Send(ctx context.Context, queueID, body string, attrs map[string]string) error {
	id := uuid.NewString()
	fields := map[string]any{"body": body}
	if len(attrs) > 0 {
		raw, err := json.Marshal(attrs)
		if err != nil {
			return domain.NewTransportError("send", queueID, err)
		}
		fields["attrs"] = string(raw)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.msgPrefix(queueID)+id, fields)
	pipe.LPush(ctx, q.key(queueID, "ready"), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.NewTransportError("send", queueID, err)
	}
	return nil
}

// receiveScript devolve ao "ready" os ids cuja visibilidade venceu e então
// entrega até ARGV[3] mensagens, cada uma com um handle novo.
var receiveScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('RPUSH', KEYS[1], id)
end
local out = {}
for i = 1, tonumber(ARGV[3]) do
  local id = redis.call('RPOP', KEYS[1])
  if not id then break end
  local key = ARGV[4] .. id
  local fields = redis.call('HMGET', key, 'body', 'attrs')
  if fields[1] then
    local handle = id .. ':' .. redis.call('INCR', KEYS[3])
    redis.call('HSET', key, 'handle', handle)
    redis.call('ZADD', KEYS[2], ARGV[2], id)
    table.insert(out, id)
    table.insert(out, fields[1])
    table.insert(out, fields[2] or '')
    table.insert(out, handle)
  end
end
return out
`)

const receiveFields = 4

func (q *RedisQueue) ReceiveBatch(ctx context.Context, queueID string, maxMessages int, wait time.Duration) ([]domain.Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	deadline := q.now().Add(wait)
	for {
		msgs, err := q.receiveOnce(ctx, queueID, maxMessages)
		if err != nil {
			return nil, domain.NewTransportError("receive", queueID, err)
		}
		if len(msgs) > 0 {
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

func (q *RedisQueue) receiveOnce(ctx context.Context, queueID string, maxMessages int) ([]domain.Message, error) {
	now := q.now()
	keys := []string{q.key(queueID, "ready"), q.key(queueID, "inflight"), q.key(queueID, "seq")}
	vals, err := receiveScript.Run(ctx, q.rdb, keys,
		now.UnixMilli(),
		now.Add(q.visibility).UnixMilli(),
		maxMessages,
		q.msgPrefix(queueID),
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(vals)%receiveFields != 0 {
		return nil, fmt.Errorf("unexpected receive script reply of %d items", len(vals))
	}

	msgs := make([]domain.Message, 0, len(vals)/receiveFields)
	for i := 0; i < len(vals); i += receiveFields {
		msg := domain.Message{ID: vals[i], Body: vals[i+1], Handle: vals[i+3]}
		if raw := vals[i+2]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &msg.Attributes); err != nil {
				q.logger.Warn("redis queue: ignoring bad attributes", "queue", queueID, "message_id", msg.ID, "error", err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// deleteScript só remove se o handle ainda for o da entrega atual.
var deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'handle') == ARGV[1] then
  redis.call('DEL', KEYS[1])
  redis.call('ZREM', KEYS[2], ARGV[2])
  redis.call('LREM', KEYS[3], 0, ARGV[2])
  return 1
end
return 0
`)

// Delete é idempotente: handle expirado, reentregue ou malformado não é erro.
func (q *RedisQueue) Delete(ctx context.Context, queueID, handle string) error {
	i := strings.LastIndexByte(handle, ':')
	if i <= 0 {
		return nil
	}
	id := handle[:i]
	if _, err := strconv.ParseInt(handle[i+1:], 10, 64); err != nil {
		return nil
	}

	keys := []string{q.msgPrefix(queueID) + id, q.key(queueID, "inflight"), q.key(queueID, "ready")}
	n, err := deleteScript.Run(ctx, q.rdb, keys, handle, id).Int()
	if err != nil {
		return domain.NewTransportError("delete", queueID, err)
	}
	if n == 0 {
		q.logger.Debug("redis queue: delete ignored stale handle", "queue", queueID, "message_id", id)
	}
	return nil
}

// Len conta mensagens prontas e em voo.
func (q *RedisQueue) Len(ctx context.Context, queueID string) (int64, error) {
	pipe := q.rdb.Pipeline()
	ready := pipe.LLen(ctx, q.key(queueID, "ready"))
	inflight := pipe.ZCard(ctx, q.key(queueID, "inflight"))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return ready.Val() + inflight.Val(), nil
}
