package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deliveryman-auth/auth/domain"

	"github.com/redis/go-redis/v9"
)

// RedisLoginStats grava contadores de login em hashes do Redis:
//
//	<prefix>:total             cumulativo, não expira
//	<prefix>:minute:YYYYmmddHHMM  por minuto, expira em ttl
//	<prefix>:client:<key>      por cliente (opcional), expira em ttl
//
// Os campos são os desfechos (success, rejected, throttled, error).
type RedisLoginStats struct {
	rdb redis.UniversalClient

	prefix       string
	ttl          time.Duration
	trackClients bool
}

type RedisStatsOption func(*RedisLoginStats)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisLoginStats) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisLoginStats) { s.ttl = d }
}

func WithStatsTrackClients(track bool) RedisStatsOption {
	return func(s *RedisLoginStats) { s.trackClients = track }
}

func NewRedisLoginStats(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisLoginStats {
	s := &RedisLoginStats{
		rdb:    rdb,
		prefix: "auth:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisLoginStats) Record(ctx context.Context, at domain.LoginAttempt) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	when := at.At
	if when.IsZero() {
		when = time.Now()
	}
	field := string(at.Outcome)
	if field == "" {
		field = string(domain.LoginFailed)
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	minuteKey := fmt.Sprintf("%s:minute:%s", s.prefix, when.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, minuteKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, minuteKey, s.ttl)
	}

	if s.trackClients {
		if k := strings.TrimSpace(string(at.Key)); k != "" {
			clientKey := s.prefix + ":client:" + k
			pipe.HIncrBy(ctx, clientKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, clientKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Total lê os contadores cumulativos.
func (s *RedisLoginStats) Total(ctx context.Context) (LoginCounters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return LoginCounters{}, err
	}
	var c LoginCounters
	for field, raw := range vals {
		var n int64
		if _, err := fmt.Sscan(raw, &n); err != nil {
			continue
		}
		switch domain.LoginOutcome(field) {
		case domain.LoginSucceeded:
			c.Succeeded = n
		case domain.LoginRejected:
			c.Rejected = n
		case domain.LoginThrottled:
			c.Throttled = n
		case domain.LoginFailed:
			c.Failed = n
		}
	}
	return c, nil
}
