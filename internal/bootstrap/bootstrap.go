// Package bootstrap monta os adaptadores de infraestrutura a partir da config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deliveryman-auth/auth/domain"
	"deliveryman-auth/auth/infra"
	"deliveryman-auth/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// NeedsRedis diz se a config usa Redis (fila ou contadores de login).
func NeedsRedis(cfg config.Config) bool {
	return cfg.QueueBackend == config.BackendRedis || cfg.StatsEnabled
}

// OpenRedis conecta e faz um PING antes de devolver o cliente.
func OpenRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

// OpenQueue escolhe o transporte por QUEUE_BACKEND. rdb só é usado no backend redis.
func OpenQueue(ctx context.Context, cfg config.Config, rdb redis.UniversalClient, logger *slog.Logger) (domain.Queue, error) {
	switch cfg.QueueBackend {
	case config.BackendSQS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.SQSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.SQSEndpoint)
			}
		})
		return infra.NewSQSQueue(client, logger), nil

	case config.BackendRedis:
		if rdb == nil {
			return nil, errors.New("redis queue backend needs a redis client")
		}
		return infra.NewRedisQueue(rdb,
			infra.WithRedisVisibility(cfg.Visibility),
			infra.WithRedisLogger(logger),
		), nil

	case config.BackendMemory:
		var opts []infra.MemoryQueueOption
		if cfg.Visibility > 0 {
			opts = append(opts, infra.WithMemoryVisibility(cfg.Visibility))
		}
		return infra.NewMemoryQueue(opts...), nil
	}
	return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
}

// OpenLoginStats devolve contadores em Redis quando habilitados, senão em memória.
func OpenLoginStats(cfg config.Config, rdb redis.UniversalClient) domain.LoginStats {
	if cfg.StatsEnabled && rdb != nil {
		return infra.NewRedisLoginStats(rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsTrackClients(cfg.StatsClients),
		)
	}
	return infra.NewMemoryLoginStats(infra.WithTrackClients(cfg.StatsClients))
}
