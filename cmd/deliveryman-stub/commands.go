package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"deliveryman-auth/auth/infra"
	"deliveryman-auth/internal/bootstrap"
	"deliveryman-auth/internal/config"
	"deliveryman-auth/internal/stub"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "deliveryman-stub",
		Short: "Cadastro de entregadores falso para desenvolvimento",
		Long: `Responde FIND_DELIVERYMAN_BY_CPF na fila de resposta a partir de um
arquivo YAML, no lugar do serviço de cadastro real.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log em nível debug")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newHashCommand())
	return cmd
}

type serveOptions struct {
	backend       string
	region        string
	endpoint      string
	redisAddr     string
	requestQueue  string
	responseQueue string
	seedFile      string
	pollWait      time.Duration
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consome a fila de requisição e responde com os registros do seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", getenvDefault("QUEUE_BACKEND", config.BackendSQS), "transporte: sqs ou redis")
	f.StringVar(&opts.region, "region", getenvDefault("AWS_REGION", "us-east-1"), "região do SQS")
	f.StringVar(&opts.endpoint, "endpoint", os.Getenv("SQS_ENDPOINT"), "endpoint alternativo do SQS (localstack)")
	f.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "endereço do Redis (backend redis)")
	f.StringVar(&opts.requestQueue, "request-queue", os.Getenv("DELIVERYMAN_REQUEST_QUEUE_URL"), "fila de requisição")
	f.StringVar(&opts.responseQueue, "response-queue", os.Getenv("DELIVERYMAN_RESPONSE_QUEUE_URL"), "fila de resposta")
	f.StringVarP(&opts.seedFile, "seed", "s", os.Getenv("STUB_SEED_FILE"), "arquivo YAML com os entregadores")
	f.DurationVar(&opts.pollWait, "poll-wait", 5*time.Second, "espera de cada leitura da fila")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	if opts.backend == config.BackendMemory {
		return errors.New("memory backend only works inside auth-service (QUEUE_BACKEND=memory)")
	}
	if opts.requestQueue == "" || opts.responseQueue == "" {
		return errors.New("--request-queue and --response-queue are required")
	}
	if opts.seedFile == "" {
		return errors.New("--seed is required")
	}

	level := slog.LevelInfo
	if root.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	f, err := os.Open(opts.seedFile)
	if err != nil {
		return err
	}
	dir, err := stub.LoadSeed(f, infra.BcryptHasher{})
	_ = f.Close()
	if err != nil {
		return err
	}

	cfg := config.Config{
		QueueBackend: opts.backend,
		AWSRegion:    opts.region,
		SQSEndpoint:  opts.endpoint,
		RedisAddr:    opts.redisAddr,
	}
	ctx := cmd.Context()

	var rdb *redis.Client
	if cfg.QueueBackend == config.BackendRedis {
		if rdb, err = bootstrap.OpenRedis(ctx, cfg); err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
	}
	queue, err := bootstrap.OpenQueue(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}

	r := &stub.Responder{
		Queue:         queue,
		RequestQueue:  opts.requestQueue,
		ResponseQueue: opts.responseQueue,
		Directory:     dir,
		PollWait:      opts.pollWait,
		Logger:        logger,
	}
	return r.Run(ctx)
}

func newHashCommand() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash <senha>",
		Short: "Gera o hash bcrypt de uma senha para usar no seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := infra.BcryptHasher{Cost: cost}.Hash(args[0])
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().IntVar(&cost, "cost", infra.DefaultBcryptCost, "custo do bcrypt")
	return cmd
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
